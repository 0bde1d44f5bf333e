package patch

import (
	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/layout"
)

// Result describes what Patch did to one function.
type Result struct {
	Skipped bool
	// Offset is the file offset the trampoline was written at.
	Offset     uint64
	Written    int
	HijackDisp int32
	MockDisp   int32
}

type options struct {
	immediate int32
}

type Option func(*options)

// WithImmediate sets the value loaded into rax before the mock is called.
func WithImmediate(v int32) Option {
	return func(o *options) {
		o.immediate = v
	}
}

// Patch writes a mock trampoline into the padding of fn. Functions whose
// padding is shorter than layout.MinPadding are left untouched and reported
// as skipped; that is not an error.
func Patch(img *elfimage.Image, fn layout.FunctionInfo, hijack, mock layout.SymbolInfo, opts ...Option) (Result, error) {
	if !fn.Patchable() {
		return Result{Skipped: true}, nil
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := MockTrampoline()
	if uint64(t.Len()) > fn.Padding {
		return Result{}, elfimage.Newf(img.Trace(), elfimage.CodeIndex, "%s: padding of %d bytes cannot hold %d", fn.Name, fn.Padding, t.Len())
	}
	start := fn.Start()
	hijackDisp, ok := t.Displacement(SlotHijack, start, hijack.Offset)
	if !ok {
		return Result{}, elfimage.Newf(img.Trace(), elfimage.CodeOverflow, "%s: %s at %#x is out of rel32 range from %#x", fn.Name, hijack.Name, hijack.Offset, start)
	}
	mockDisp, ok := t.Displacement(SlotMock, start, mock.Offset)
	if !ok {
		return Result{}, elfimage.Newf(img.Trace(), elfimage.CodeOverflow, "%s: %s at %#x is out of rel32 range from %#x", fn.Name, mock.Name, mock.Offset, start)
	}
	t.SetInt32(SlotHijack, hijackDisp)
	t.SetInt32(SlotMock, mockDisp)
	t.SetInt32(SlotImmediate, o.immediate)

	if err := img.Overwrite(start, t.Bytes()); err != nil {
		return Result{}, elfimage.Wrap(img.Trace(), err)
	}
	return Result{
		Offset:     start,
		Written:    t.Len(),
		HijackDisp: hijackDisp,
		MockDisp:   mockDisp,
	}, nil
}
