// Package trace keeps an append-only record of failing call sites so a
// fatal error can be reported with the full chain of fallible calls that
// led to it.
package trace

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"
)

// DefaultCapacity is the number of frames a Trace holds before it starts
// dropping new ones.
const DefaultCapacity = 1024

// Frame is a single recorded call site.
type Frame struct {
	File     string
	Function string
	Line     int
	Code     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d %s (%d)", filepath.Base(f.File), f.Line, f.Function, f.Code)
}

// Caller builds a Frame for the function skip levels above Caller itself.
func Caller(skip int, code int) Frame {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+2, pcs) < 1 {
		return Frame{File: "?", Function: "?", Code: code}
	}
	f, _ := runtime.CallersFrames(pcs).Next()
	if f.Function == "" {
		f.Function = "?"
	}
	return Frame{File: f.File, Function: f.Function, Line: f.Line, Code: code}
}

// Namer renders a result code for Dump.
type Namer func(code int) string

// Trace is a bounded, ordered list of frames. Reset does not clear the
// frames right away: it arms the trace, and the next Record starts a new
// sequence. This leaves the frames of a failed operation readable until
// the caller begins the next one.
type Trace struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
	armed    bool
	namer    Namer
}

func New(capacity int) *Trace {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Trace{
		frames:   make([]Frame, 0, min(capacity, 64)),
		capacity: capacity,
	}
}

// WithNamer sets the function used by Dump to print codes.
func (t *Trace) WithNamer(n Namer) *Trace {
	t.mu.Lock()
	t.namer = n
	t.mu.Unlock()
	return t
}

// Record appends f and returns its code unchanged. A full trace drops the
// frame silently.
func (t *Trace) Record(f Frame) int {
	if t == nil {
		return f.Code
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.frames = t.frames[:0]
		t.armed = false
	}
	if len(t.frames) < t.capacity {
		t.frames = append(t.frames, f)
	}
	return f.Code
}

// Reset arms the trace for clearing on the next Record.
func (t *Trace) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.armed = true
	t.mu.Unlock()
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// Frames returns a copy of the recorded frames in insertion order.
func (t *Trace) Frames() []Frame {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]Frame, len(t.frames))
	copy(res, t.frames)
	return res
}

// HasError reports whether any recorded frame carries a non-zero code.
func (t *Trace) HasError() bool {
	for _, f := range t.Frames() {
		if f.Code != 0 {
			return true
		}
	}
	return false
}

// Dump writes every frame in insertion order.
func (t *Trace) Dump(w io.Writer) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	namer := t.namer
	t.mu.Unlock()
	for i, f := range t.Frames() {
		code := fmt.Sprintf("%d", f.Code)
		if namer != nil {
			code = fmt.Sprintf("%d %s", f.Code, namer(f.Code))
		}
		if _, err := fmt.Fprintf(w, "%d: %s\n\tfile: %s\n\tfunc: %s\n\tline: %d\n\n", i, code, f.File, f.Function, f.Line); err != nil {
			return err
		}
	}
	return nil
}
