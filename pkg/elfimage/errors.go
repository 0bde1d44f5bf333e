package elfimage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gael12334/gt/pkg/trace"
)

// Code classifies every failure an image operation can report.
type Code int

const (
	CodeOK Code = iota
	// CodeDone signals an exhausted iteration. It is terminal, not a failure.
	CodeDone
	CodeLoaded
	CodeUnloaded
	CodePath
	CodeMalloc
	CodeSegfault
	CodeIndex
	CodeNotFound
	CodeType
	CodeDivZero
	CodeNull
	CodeNotImpl
	CodeFormat
	CodeOverflow
)

var codeNames = [...]string{
	CodeOK:       "OK",
	CodeDone:     "DONE",
	CodeLoaded:   "LOADED",
	CodeUnloaded: "UNLOADED",
	CodePath:     "PATH",
	CodeMalloc:   "MALLOC",
	CodeSegfault: "SEGFAULT",
	CodeIndex:    "INDEX",
	CodeNotFound: "NOT_FOUND",
	CodeType:     "TYPE",
	CodeDivZero:  "DIV_ZERO",
	CodeNull:     "NULL",
	CodeNotImpl:  "NOT_IMPL",
	CodeFormat:   "FORMAT",
	CodeOverflow: "OVERFLOW",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// CodeName is a trace.Namer for image codes.
func CodeName(code int) string {
	return Code(code).String()
}

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrDone     = &Error{Code: CodeDone}
	ErrLoaded   = &Error{Code: CodeLoaded}
	ErrUnloaded = &Error{Code: CodeUnloaded}
	ErrPath     = &Error{Code: CodePath}
	ErrMalloc   = &Error{Code: CodeMalloc}
	ErrSegfault = &Error{Code: CodeSegfault}
	ErrIndex    = &Error{Code: CodeIndex}
	ErrNotFound = &Error{Code: CodeNotFound}
	ErrType     = &Error{Code: CodeType}
	ErrDivZero  = &Error{Code: CodeDivZero}
	ErrNull     = &Error{Code: CodeNull}
	ErrNotImpl  = &Error{Code: CodeNotImpl}
	ErrFormat   = &Error{Code: CodeFormat}
	ErrOverflow = &Error{Code: CodeOverflow}
)

// Error is a coded failure together with the chain of call sites it
// travelled through, innermost first.
type Error struct {
	Code   Code
	Msg    string
	Frames []trace.Frame
	cause  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(e.Code.String()))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// CodeOf returns the code carried by err, CodeOK for nil and CodeNull for
// errors that did not originate here.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeNull
}

// Newf creates an error for the calling function and records it in tr.
func Newf(tr *trace.Trace, code Code, format string, args ...any) error {
	return newError(tr, 2, code, nil, fmt.Sprintf(format, args...))
}

// Causef is Newf with an underlying error kept for errors.Unwrap.
func Causef(tr *trace.Trace, code Code, cause error, format string, args ...any) error {
	return newError(tr, 2, code, cause, fmt.Sprintf(format, args...))
}

// Wrap appends the caller's frame to err and records it in tr. Errors that
// are not *Error are converted to CodeNull first. A nil err stays nil.
func Wrap(tr *trace.Trace, err error) error {
	return wrap(tr, 2, err)
}

func newError(tr *trace.Trace, skip int, code Code, cause error, msg string) error {
	f := trace.Caller(skip, int(code))
	e := &Error{Code: code, Msg: msg, Frames: []trace.Frame{f}, cause: cause}
	if code != CodeDone {
		tr.Record(f)
	}
	return e
}

func wrap(tr *trace.Trace, skip int, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return newError(tr, skip+1, CodeNull, err, "")
	}
	f := trace.Caller(skip, int(e.Code))
	e.Frames = append(e.Frames, f)
	if e.Code != CodeDone {
		tr.Record(f)
	}
	return err
}
