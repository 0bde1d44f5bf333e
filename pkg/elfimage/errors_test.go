package elfimage

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gael12334/gt/pkg/trace"
)

func failingInner(tr *trace.Trace) error {
	return Newf(tr, CodeIndex, "entry %d", 3)
}

func failingOuter(tr *trace.Trace) error {
	return Wrap(tr, failingInner(tr))
}

func TestErrorFrames(t *testing.T) {
	tr := trace.New(0).WithNamer(CodeName)
	err := failingOuter(tr)

	require.ErrorIs(t, err, ErrIndex)
	require.NotErrorIs(t, err, ErrSegfault)
	require.Equal(t, CodeIndex, CodeOf(err))
	require.Equal(t, "index: entry 3", err.Error())

	var e *Error
	require.True(t, errors.As(err, &e))
	require.Len(t, e.Frames, 2)
	require.True(t, strings.HasSuffix(e.Frames[0].Function, ".failingInner"), e.Frames[0].Function)
	require.True(t, strings.HasSuffix(e.Frames[1].Function, ".failingOuter"), e.Frames[1].Function)
	require.Equal(t, e.Frames, tr.Frames())

	var buf bytes.Buffer
	require.NoError(t, tr.Dump(&buf))
	require.Contains(t, buf.String(), "0: 7 INDEX\n")
	require.Contains(t, buf.String(), "1: 7 INDEX\n")
}

func TestWrap(t *testing.T) {
	tr := trace.New(0)
	require.NoError(t, Wrap(tr, nil))
	require.Zero(t, tr.Len())

	cause := errors.New("boom")
	err := Wrap(tr, cause)
	require.ErrorIs(t, err, ErrNull)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "null: boom", err.Error())
	require.Equal(t, 1, tr.Len())
}

func TestDoneIsNotRecorded(t *testing.T) {
	tr := trace.New(0)
	err := Wrap(tr, Newf(tr, CodeDone, "end"))
	require.ErrorIs(t, err, ErrDone)
	require.Zero(t, tr.Len())
}

func TestCauseMessage(t *testing.T) {
	err := Causef(nil, CodePath, errors.New("no such file"), "open %q", "a.o")
	require.Equal(t, `path: open "a.o": no such file`, err.Error())
}

func TestCodeNames(t *testing.T) {
	require.Equal(t, "OK", CodeOK.String())
	require.Equal(t, "NOT_FOUND", CodeNotFound.String())
	require.Equal(t, "OVERFLOW", CodeName(int(CodeOverflow)))
	require.Equal(t, "Code(99)", Code(99).String())
	require.Equal(t, CodeOK, CodeOf(nil))
	require.Equal(t, CodeNull, CodeOf(errors.New("x")))
}
