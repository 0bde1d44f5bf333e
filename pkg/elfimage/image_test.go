package elfimage

import (
	"debug/elf"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gael12334/gt/pkg/elfimage/elftest"
	"github.com/gael12334/gt/pkg/trace"
)

var cfi = []byte{0xf3, 0x0f, 0x1e, 0xfa}

// Symbol indices in testFile.
const (
	symFile   = 1
	symTarget = 2
	symHijack = 3
	symMock   = 4
	symCommon = 5
)

func testFile(typ elf.Type) elftest.File {
	return elftest.File{
		Type: typ,
		Symbols: []elftest.Sym{
			{Name: "file.c", Type: elf.STT_FILE, Bind: elf.STB_LOCAL},
			{Name: "target", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Body: elftest.Function(cfi, 60)},
			{Name: "gt_hijack", Type: elf.STT_OBJECT, Bind: elf.STB_GLOBAL, Body: make([]byte, 8)},
			{Name: "gt_mock", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Body: elftest.Function(cfi, 0)},
			{Name: "common", Type: elf.STT_OBJECT, Bind: elf.STB_GLOBAL, Body: make([]byte, 8), Common: true},
		},
	}
}

func newTestImage(t *testing.T, data []byte) *Image {
	t.Helper()
	return NewImage("test.o", data, trace.New(0).WithNamer(CodeName))
}

func TestResolve(t *testing.T) {
	img := newTestImage(t, make([]byte, 16))

	for _, tc := range []struct {
		name         string
		offset, size uint64
		code         Code
	}{
		{name: "whole image", offset: 0, size: 16},
		{name: "last byte", offset: 15, size: 1},
		{name: "empty span at end", offset: 16, size: 0},
		{name: "one byte past the end", offset: 1, size: 16, code: CodeSegfault},
		{name: "empty span past the end", offset: 17, size: 0, code: CodeSegfault},
		{name: "size larger than image", offset: 0, size: 17, code: CodeSegfault},
		{name: "offset overflow", offset: math.MaxUint64, size: 2, code: CodeSegfault},
		{name: "size overflow", offset: 8, size: math.MaxUint64, code: CodeSegfault},
	} {
		t.Run(tc.name, func(t *testing.T) {
			span, err := img.Resolve(tc.offset, tc.size)
			require.Equal(t, tc.code, CodeOf(err))
			if tc.code != CodeOK {
				require.Nil(t, span)
				return
			}
			require.Len(t, span, int(tc.size))
			require.Equal(t, int(tc.size), cap(span), "span must not expose bytes past its end")
		})
	}
}

func TestOverwrite(t *testing.T) {
	img := newTestImage(t, make([]byte, 8))
	require.NoError(t, img.Overwrite(2, []byte{1, 2, 3}))
	require.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0}, img.data)

	err := img.Overwrite(6, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrSegfault)
	require.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0}, img.data, "a failed overwrite leaves the image untouched")
}

func TestReleasedImage(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	img := newTestImage(t, data)
	img.release()

	require.Equal(t, []byte{0, 0, 0, 0}, data)
	_, err := img.Resolve(0, 1)
	require.ErrorIs(t, err, ErrUnloaded)
	_, err = img.Header()
	require.ErrorIs(t, err, ErrUnloaded)
}
