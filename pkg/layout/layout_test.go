package layout

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/elfimage/elftest"
	"github.com/gael12334/gt/pkg/trace"
)

func nops(n int) []byte { return bytes.Repeat([]byte{NOP}, n) }

func concat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestAnalyze(t *testing.T) {
	for _, tc := range []struct {
		name      string
		body      []byte
		cfi       bool
		skip      uint64
		padding   uint64
		patchable bool
	}{
		{name: "prologue and 60 nops", body: concat(CFIPrologue, nops(60)), cfi: true, skip: 4, padding: 60, patchable: true},
		{name: "prologue and 49 nops", body: concat(CFIPrologue, nops(49), []byte{0xc3}), cfi: true, skip: 4, padding: 49},
		{name: "prologue and 50 nops", body: concat(CFIPrologue, nops(50), []byte{0xc3}), cfi: true, skip: 4, padding: 50, patchable: true},
		{name: "no prologue", body: concat(nops(55), []byte{0xc3}), padding: 55, patchable: true},
		{name: "nops after other code do not count", body: concat(CFIPrologue, []byte{0x55}, nops(60)), cfi: true, skip: 4},
		{name: "prologue only", body: CFIPrologue, cfi: true, skip: 4},
		{name: "shorter than a prologue", body: []byte{0xf3, 0x0f}},
		{name: "empty", body: nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data := elftest.Build(elftest.File{Symbols: []elftest.Sym{
				{Name: "target", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Body: tc.body},
			}})
			before := bytes.Clone(data)
			img := elfimage.NewImage("test.o", data, trace.New(0))
			table, err := img.SymbolTable()
			require.NoError(t, err)

			fn, err := AnalyzeByName(img, table, "target")
			require.NoError(t, err)
			require.Equal(t, "target", fn.Name)
			require.Equal(t, uint64(len(tc.body)), fn.Size)
			require.Equal(t, tc.cfi, fn.HasCFIPrologue)
			require.Equal(t, tc.skip, fn.PrologueSkip)
			require.Equal(t, tc.padding, fn.Padding)
			require.Equal(t, tc.patchable, fn.Patchable())
			require.Equal(t, fn.Offset+tc.skip, fn.Start())
			require.LessOrEqual(t, fn.PrologueSkip+fn.Padding, fn.Size)
			require.Equal(t, before, data, "analysis is a pure read")
		})
	}
}

func TestLoadSymbol(t *testing.T) {
	data := elftest.Build(elftest.File{Symbols: []elftest.Sym{
		{Name: "target", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Body: elftest.Function(CFIPrologue, 60)},
		{Name: "hijack", Type: elf.STT_OBJECT, Bind: elf.STB_GLOBAL, Body: make([]byte, 8)},
		{Name: "main.c", Type: elf.STT_FILE, Bind: elf.STB_LOCAL},
	}})
	img := elfimage.NewImage("test.o", data, trace.New(0))
	table, err := img.SymbolTable()
	require.NoError(t, err)

	hijack, err := LoadSymbolByName(img, table, "hijack")
	require.NoError(t, err)
	require.Equal(t, "hijack", hijack.Name)
	require.Equal(t, uint64(8), hijack.Size)
	require.Equal(t, hijack.Offset+8, hijack.End())
	require.Equal(t, table, hijack.Table)

	body, err := img.Resolve(hijack.Offset, hijack.Size)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), body)

	_, err = AnalyzeByName(img, table, "hijack")
	require.ErrorIs(t, err, elfimage.ErrType, "objects have no function layout")

	_, err = LoadSymbolByName(img, table, "main.c")
	require.ErrorIs(t, err, elfimage.ErrType)

	_, err = LoadSymbolByName(img, table, "missing")
	require.ErrorIs(t, err, elfimage.ErrNotFound)
}
