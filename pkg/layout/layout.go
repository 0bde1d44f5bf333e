// Package layout describes where a symbol lives in an image and how the
// body of a function is laid out: an optional CFI prologue followed by a
// run of single-byte NOPs that can be overwritten.
package layout

import (
	"bytes"
	"debug/elf"

	"github.com/gael12334/gt/pkg/elfimage"
)

const (
	// NOP is the single-byte x86-64 no-op.
	NOP = 0x90
	// MinPadding is the smallest NOP run a mock trampoline is written into.
	MinPadding = 50
)

// CFIPrologue is ENDBR64, emitted at function entry with -fcf-protection.
var CFIPrologue = []byte{0xf3, 0x0f, 0x1e, 0xfa}

// SymbolInfo is a FUNC or OBJECT symbol resolved to its place in the file.
type SymbolInfo struct {
	Symbol elfimage.Symbol
	Table  elfimage.Section
	Offset uint64
	Size   uint64
	Name   string
}

// End is the file offset one past the last byte of the symbol.
func (s SymbolInfo) End() uint64 {
	return s.Offset + s.Size
}

type FunctionInfo struct {
	SymbolInfo
	HasCFIPrologue bool
	// PrologueSkip is the number of bytes between the symbol start and the
	// first padding byte: len(CFIPrologue) or 0.
	PrologueSkip uint64
	Padding      uint64
}

// Start is the file offset of the effective body, after the prologue.
func (f FunctionInfo) Start() uint64 {
	return f.Offset + f.PrologueSkip
}

// Patchable reports whether the padding can take a mock trampoline.
func (f FunctionInfo) Patchable() bool {
	return f.Padding >= MinPadding
}

// LoadSymbol resolves the file offset, size and name of sym, which must be
// of type FUNC or OBJECT.
func LoadSymbol(img *elfimage.Image, table elfimage.Section, sym elfimage.Symbol) (SymbolInfo, error) {
	_, off, err := img.SymbolBytes(sym)
	if err != nil {
		return SymbolInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	name, err := img.SymbolName(table, sym)
	if err != nil {
		return SymbolInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	return SymbolInfo{
		Symbol: sym,
		Table:  table,
		Offset: off,
		Size:   sym.Size,
		Name:   name,
	}, nil
}

// Analyze loads a FUNC symbol and measures its prologue and padding. It
// never writes to the image.
func Analyze(img *elfimage.Image, table elfimage.Section, sym elfimage.Symbol) (FunctionInfo, error) {
	if sym.SymType() != elf.STT_FUNC {
		return FunctionInfo{}, elfimage.Newf(img.Trace(), elfimage.CodeType, "symbol %d is %s, not STT_FUNC", sym.Index, sym.SymType())
	}
	info, err := LoadSymbol(img, table, sym)
	if err != nil {
		return FunctionInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	body, _, err := img.SymbolBytes(sym)
	if err != nil {
		return FunctionInfo{}, elfimage.Wrap(img.Trace(), err)
	}

	fn := FunctionInfo{SymbolInfo: info}
	if bytes.HasPrefix(body, CFIPrologue) {
		fn.HasCFIPrologue = true
		fn.PrologueSkip = uint64(len(CFIPrologue))
	}
	fn.Padding = countPadding(body[fn.PrologueSkip:])
	return fn, nil
}

func countPadding(body []byte) uint64 {
	var n uint64
	for _, b := range body {
		if b != NOP {
			break
		}
		n++
	}
	return n
}

// AnalyzeByName looks sym up by name in table and analyzes it.
func AnalyzeByName(img *elfimage.Image, table elfimage.Section, name string) (FunctionInfo, error) {
	sym, err := img.SymbolByName(table, name)
	if err != nil {
		return FunctionInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	fn, err := Analyze(img, table, sym)
	if err != nil {
		return FunctionInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	return fn, nil
}

// LoadSymbolByName looks sym up by name in table and loads it.
func LoadSymbolByName(img *elfimage.Image, table elfimage.Section, name string) (SymbolInfo, error) {
	sym, err := img.SymbolByName(table, name)
	if err != nil {
		return SymbolInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	info, err := LoadSymbol(img, table, sym)
	if err != nil {
		return SymbolInfo{}, elfimage.Wrap(img.Trace(), err)
	}
	return info, nil
}
