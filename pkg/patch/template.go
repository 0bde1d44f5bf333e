// Package patch rewrites the NOP padding of functions in an ELF image with
// small trampolines: a mock trampoline that calls through a guarded
// function pointer, and an entry trampoline that redirects the program
// entry function.
package patch

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Slot is a 4-byte little-endian field of a Template. End is the offset of
// the next instruction, which RIP-relative displacements are measured from.
type Slot struct {
	Name   string
	Offset int
	End    int
}

const (
	SlotHijack    = "hijack"
	SlotMock      = "mock"
	SlotImmediate = "immediate"
	SlotCall      = "call"
)

// Template is a fixed instruction sequence with named slots. Only the slot
// bytes ever change.
type Template struct {
	name  string
	code  []byte
	slots []Slot
}

var mockTrampoline = [...]byte{
	0x90,                                     // nop
	0x48, 0x8b, 0x05, 0xff, 0xff, 0xff, 0xff, // mov rax, qword ptr [rip+hijack]
	0x4c, 0x8b, 0x25, 0xed, 0xff, 0xff, 0xff, // mov r12, qword ptr [rip-0x13]
	0x49, 0x3b, 0xc4,                         // cmp rax, r12
	0x0f, 0x85, 0x1a, 0x00, 0x00, 0x00,       // jnz +0x1a
	0x55,                                     // push rbp
	0x48, 0x89, 0xe5,                         // mov rbp, rsp
	0x48, 0x8b, 0x1d, 0xff, 0xff, 0xff, 0xff, // mov rbx, qword ptr [rip+mock]
	0x48, 0xc7, 0xc0, 0x00, 0x00, 0x00, 0x00, // mov rax, imm32
	0xff, 0xd3,                               // call rbx
	0x5d,                                     // pop rbp
	0xc3,                                     // ret
}

var entryTrampoline = [...]byte{
	0x55,                         // push rbp
	0x48, 0x89, 0xe5,             // mov rbp, rsp
	0xe8, 0xff, 0xff, 0xff, 0xff, // call rel32
	0xc9,                         // leave
	0xc3,                         // ret
}

const (
	MockTrampolineSize  = len(mockTrampoline)
	EntryTrampolineSize = len(entryTrampoline)
)

// MockTrampoline returns a fresh copy of the 46-byte mock trampoline. On
// entry it loads the guard pointer through the hijack slot and compares it
// with the function's own start. When they differ it jumps back into the
// original body; otherwise it calls through the mock slot and returns the
// mock's result.
func MockTrampoline() *Template {
	return &Template{
		name: "mock",
		code: append([]byte(nil), mockTrampoline[:]...),
		slots: []Slot{
			{Name: SlotHijack, Offset: 4, End: 8},
			{Name: SlotMock, Offset: 31, End: 35},
			{Name: SlotImmediate, Offset: 38, End: 42},
		},
	}
}

// EntryTrampoline returns a fresh copy of the 11-byte trampoline that
// replaces the program entry function with a call to the test main.
func EntryTrampoline() *Template {
	return &Template{
		name: "entry",
		code: append([]byte(nil), entryTrampoline[:]...),
		slots: []Slot{
			{Name: SlotCall, Offset: 5, End: 9},
		},
	}
}

func (t *Template) Name() string { return t.name }

func (t *Template) Len() int { return len(t.code) }

// Bytes returns a copy of the current template content.
func (t *Template) Bytes() []byte {
	return append([]byte(nil), t.code...)
}

func (t *Template) Slots() []Slot {
	return append([]Slot(nil), t.slots...)
}

func (t *Template) Slot(name string) (Slot, bool) {
	for _, s := range t.slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

func (t *Template) mustSlot(name string) Slot {
	s, ok := t.Slot(name)
	if !ok {
		panic(fmt.Sprintf("%s trampoline has no %s slot", t.name, name))
	}
	return s
}

func (t *Template) Int32(name string) int32 {
	s := t.mustSlot(name)
	return int32(binary.LittleEndian.Uint32(t.code[s.Offset:s.End]))
}

func (t *Template) SetInt32(name string, v int32) {
	s := t.mustSlot(name)
	binary.LittleEndian.PutUint32(t.code[s.Offset:s.End], uint32(v))
}

// Displacement is the RIP-relative distance from the instruction following
// slot name, with the template placed at base, to target. ok is false when
// the distance does not fit in 32 bits.
func (t *Template) Displacement(name string, base, target uint64) (disp int32, ok bool) {
	s := t.mustSlot(name)
	next := base + uint64(s.End)
	if next < base {
		return 0, false
	}
	var d int64
	if target >= next {
		if target-next > math.MaxInt32 {
			return 0, false
		}
		d = int64(target - next)
	} else {
		if next-target > -math.MinInt32 {
			return 0, false
		}
		d = -int64(next - target)
	}
	return int32(d), true
}
