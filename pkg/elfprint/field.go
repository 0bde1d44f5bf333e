// Package elfprint renders decoded ELF structures for humans: tagged field
// lists, tables, hex dumps and disassembly listings.
package elfprint

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Kind selects how a Field value is rendered.
type Kind int

const (
	KindString Kind = iota
	KindUint
	KindHex
	KindSize
	KindEnum
	KindBytes
	KindBool
)

// Field is a named value tagged with its rendering kind.
type Field struct {
	Name string
	Kind Kind

	str   string
	num   uint64
	bytes []byte
}

func String(name, v string) Field { return Field{Name: name, Kind: KindString, str: v} }
func Uint(name string, v uint64) Field { return Field{Name: name, Kind: KindUint, num: v} }
func Hex(name string, v uint64) Field { return Field{Name: name, Kind: KindHex, num: v} }
func Size(name string, v uint64) Field { return Field{Name: name, Kind: KindSize, num: v} }
func Bytes(name string, v []byte) Field { return Field{Name: name, Kind: KindBytes, bytes: v} }

func Bool(name string, v bool) Field {
	f := Field{Name: name, Kind: KindBool}
	if v {
		f.num = 1
	}
	return f
}

// Enum renders a symbolic value next to its raw number, as in
// "ET_REL (1)".
func Enum[T ~uint8 | ~uint16 | ~uint32 | ~int | ~int32](name string, v T) Field {
	return Field{Name: name, Kind: KindEnum, str: fmt.Sprint(v), num: uint64(v)}
}

// Value is the rendered value of f.
func (f Field) Value() string {
	switch f.Kind {
	case KindString:
		return f.str
	case KindUint:
		return strconv.FormatUint(f.num, 10)
	case KindHex:
		return fmt.Sprintf("%#x", f.num)
	case KindSize:
		return fmt.Sprintf("%s (%d)", humanize.IBytes(f.num), f.num)
	case KindEnum:
		if f.str == strconv.FormatUint(f.num, 10) {
			return f.str
		}
		return fmt.Sprintf("%s (%d)", f.str, f.num)
	case KindBytes:
		return fmt.Sprintf("% x", f.bytes)
	case KindBool:
		return strconv.FormatBool(f.num != 0)
	default:
		return fmt.Sprintf("?(%d)", int(f.Kind))
	}
}

func (f Field) String() string {
	return f.Name + ": " + f.Value()
}
