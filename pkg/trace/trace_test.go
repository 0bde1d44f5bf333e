package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordReturnsCode(t *testing.T) {
	tr := New(4)
	require.Equal(t, 7, tr.Record(Frame{File: "a.go", Function: "a", Line: 1, Code: 7}))
	require.Equal(t, 0, tr.Record(Caller(0, 0)))
	require.Equal(t, 2, tr.Len())
	require.True(t, tr.HasError())

	frames := tr.Frames()
	require.Equal(t, "a.go", frames[0].File)
	require.Contains(t, frames[1].Function, "TestRecordReturnsCode")
	require.True(t, strings.HasSuffix(frames[1].File, "trace_test.go"))
}

func TestCapacityDropsSilently(t *testing.T) {
	tr := New(2)
	for i := 1; i <= 5; i++ {
		require.Equal(t, i, tr.Record(Frame{Code: i}))
	}
	frames := tr.Frames()
	require.Len(t, frames, 2)
	require.Equal(t, 1, frames[0].Code)
	require.Equal(t, 2, frames[1].Code)
}

func TestResetIsLazy(t *testing.T) {
	tr := New(8)
	tr.Record(Frame{Code: 3})
	tr.Record(Frame{Code: 4})

	tr.Reset()
	require.Equal(t, 2, tr.Len(), "frames stay readable until the next record")

	tr.Record(Frame{Code: 0})
	frames := tr.Frames()
	require.Len(t, frames, 1)
	require.Equal(t, 0, frames[0].Code)
	require.False(t, tr.HasError())
}

func TestDump(t *testing.T) {
	tr := New(0).WithNamer(func(code int) string {
		if code == 5 {
			return "SEGFAULT"
		}
		return "?"
	})
	tr.Record(Frame{File: "image.go", Function: "elfimage.(*Image).Resolve", Line: 42, Code: 5})
	tr.Record(Frame{File: "header.go", Function: "elfimage.(*Image).Header", Line: 10, Code: 5})

	var buf bytes.Buffer
	require.NoError(t, tr.Dump(&buf))
	require.Equal(t, "0: 5 SEGFAULT\n\tfile: image.go\n\tfunc: elfimage.(*Image).Resolve\n\tline: 42\n\n"+
		"1: 5 SEGFAULT\n\tfile: header.go\n\tfunc: elfimage.(*Image).Header\n\tline: 10\n\n", buf.String())
}

func TestNilTrace(t *testing.T) {
	var tr *Trace
	require.Equal(t, 9, tr.Record(Frame{Code: 9}))
	tr.Reset()
	require.Zero(t, tr.Len())
	require.Nil(t, tr.Frames())
	require.NoError(t, tr.Dump(&bytes.Buffer{}))
}
