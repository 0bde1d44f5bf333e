package patch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestMockTrampolineLayout(t *testing.T) {
	tmpl := MockTrampoline()
	require.Equal(t, 46, tmpl.Len())
	require.NoError(t, tmpl.Check())

	insts := Disassemble(tmpl.Bytes(), 0)
	require.Equal(t, []int{0, 1, 8, 15, 18, 24, 25, 28, 35, 42, 44, 45, 46}, Boundaries(insts))

	ops := make([]x86asm.Op, 0, len(insts))
	for _, i := range insts {
		require.True(t, i.Valid, i.String())
		ops = append(ops, i.Inst.Op)
	}
	require.Equal(t, []x86asm.Op{
		x86asm.NOP, x86asm.MOV, x86asm.MOV, x86asm.CMP, x86asm.JNE,
		x86asm.PUSH, x86asm.MOV, x86asm.MOV, x86asm.MOV, x86asm.CALL,
		x86asm.POP, x86asm.RET,
	}, ops)

	jnz, ok := insts[4].Target()
	require.True(t, ok)
	require.Equal(t, uint64(50), jnz, "the guard branch lands past the trampoline, in the original body")

	for _, tc := range []struct {
		name        string
		offset, end int
	}{
		{name: SlotHijack, offset: 4, end: 8},
		{name: SlotMock, offset: 31, end: 35},
		{name: SlotImmediate, offset: 38, end: 42},
	} {
		s, ok := tmpl.Slot(tc.name)
		require.True(t, ok)
		require.Equal(t, tc.offset, s.Offset)
		require.Equal(t, tc.end, s.End)
	}
	_, ok = tmpl.Slot(SlotCall)
	require.False(t, ok)
}

func TestEntryTrampolineLayout(t *testing.T) {
	tmpl := EntryTrampoline()
	require.Equal(t, 11, tmpl.Len())
	require.NoError(t, tmpl.Check())

	insts := Disassemble(tmpl.Bytes(), 0)
	require.Equal(t, []int{0, 1, 4, 9, 10, 11}, Boundaries(insts))
	require.Equal(t, x86asm.CALL, insts[2].Inst.Op)
	require.Equal(t, x86asm.LEAVE, insts[3].Inst.Op)
}

func TestTemplateCopies(t *testing.T) {
	a := MockTrampoline()
	a.SetInt32(SlotHijack, 0x01020304)
	require.Equal(t, int32(0x01020304), a.Int32(SlotHijack))
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, a.Bytes()[4:8])

	b := MockTrampoline()
	require.Equal(t, int32(-1), b.Int32(SlotHijack), "templates never share their bytes")

	out := b.Bytes()
	out[0] = 0
	require.Equal(t, byte(0x90), b.Bytes()[0])

	require.Panics(t, func() { b.SetInt32(SlotCall, 1) })
}

func TestDisplacement(t *testing.T) {
	tmpl := MockTrampoline()
	for _, tc := range []struct {
		name         string
		base, target uint64
		disp         int32
		ok           bool
	}{
		{name: "forward", base: 100, target: 200, disp: 92, ok: true},
		{name: "backward", base: 100, target: 0, disp: -108, ok: true},
		{name: "largest forward", base: 0, target: 8 + math.MaxInt32, disp: math.MaxInt32, ok: true},
		{name: "too far forward", base: 0, target: 9 + math.MaxInt32},
		{name: "largest backward", base: 1 << 32, target: 1<<32 + 8 - 1<<31, disp: math.MinInt32, ok: true},
		{name: "too far backward", base: 1 << 32, target: 1<<32 + 7 - 1<<31},
		{name: "base overflow", base: math.MaxUint64 - 2, target: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			disp, ok := tmpl.Displacement(SlotHijack, tc.base, tc.target)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.disp, disp)
		})
	}
}

func TestDisassembleTruncated(t *testing.T) {
	insts := Disassemble([]byte{0xc3, 0x48, 0x8b}, 0x1000)
	require.Equal(t, []int{0, 1, 2, 3}, Boundaries(insts))

	require.True(t, insts[0].Valid)
	require.Equal(t, x86asm.RET, insts[0].Inst.Op)
	require.Equal(t, uint64(0x1001), insts[1].PC)
	require.False(t, insts[1].Valid)
	require.False(t, insts[2].Valid)
	require.Equal(t, "(bad) 48", insts[1].String())

	_, ok := insts[1].Target()
	require.False(t, ok)
	require.Nil(t, Boundaries(nil))
}
