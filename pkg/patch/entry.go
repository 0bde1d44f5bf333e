package patch

import (
	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/layout"
)

// PatchEntry makes entry call testMain and return its result. The
// trampoline goes right after the CFI prologue of entry and must fit in its
// padding.
func PatchEntry(img *elfimage.Image, entry, testMain layout.FunctionInfo) (Result, error) {
	t := EntryTrampoline()
	if uint64(t.Len()) > entry.Padding {
		return Result{}, elfimage.Newf(img.Trace(), elfimage.CodeIndex, "%s: padding of %d bytes cannot hold the %d byte entry trampoline", entry.Name, entry.Padding, t.Len())
	}
	start := entry.Start()
	disp, ok := t.Displacement(SlotCall, start, testMain.Offset)
	if !ok {
		return Result{}, elfimage.Newf(img.Trace(), elfimage.CodeOverflow, "%s: %s at %#x is out of rel32 range from %#x", entry.Name, testMain.Name, testMain.Offset, start)
	}
	t.SetInt32(SlotCall, disp)

	if err := img.Overwrite(start, t.Bytes()); err != nil {
		return Result{}, elfimage.Wrap(img.Trace(), err)
	}
	return Result{Offset: start, Written: t.Len()}, nil
}
