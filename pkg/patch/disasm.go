package patch

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Instruction is one decoded x86-64 instruction. Bytes that do not decode
// become single-byte instructions with Valid unset.
type Instruction struct {
	PC    uint64
	Raw   []byte
	Inst  x86asm.Inst
	Valid bool
}

// Disassemble decodes code as 64-bit x86 placed at pc.
func Disassemble(code []byte, pc uint64) []Instruction {
	var out []Instruction
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		size := inst.Len
		valid := err == nil && size > 0 && inst.Op != 0
		if !valid {
			inst = x86asm.Inst{}
			size = 1
		}
		out = append(out, Instruction{PC: pc, Raw: code[:size:size], Inst: inst, Valid: valid})
		code = code[size:]
		pc += uint64(size)
	}
	return out
}

func (i Instruction) Len() int { return len(i.Raw) }

func (i Instruction) String() string {
	if !i.Valid {
		return fmt.Sprintf("(bad) %02x", i.Raw[0])
	}
	return x86asm.IntelSyntax(i.Inst, i.PC, nil)
}

// Target returns the address referenced by a relative branch or a
// RIP-relative memory operand.
func (i Instruction) Target() (uint64, bool) {
	if !i.Valid {
		return 0, false
	}
	next := int64(i.PC) + int64(i.Len())
	for _, arg := range i.Inst.Args {
		switch a := arg.(type) {
		case nil:
			return 0, false
		case x86asm.Rel:
			return uint64(next + int64(a)), true
		case x86asm.Mem:
			if a.Base == x86asm.RIP {
				return uint64(next + a.Disp), true
			}
		}
	}
	return 0, false
}

// Boundaries lists the offsets, relative to the first instruction, at which
// each instruction starts, plus the offset one past the last.
func Boundaries(insts []Instruction) []int {
	if len(insts) == 0 {
		return nil
	}
	res := make([]int, 0, len(insts)+1)
	base := insts[0].PC
	for _, i := range insts {
		res = append(res, int(i.PC-base))
	}
	last := insts[len(insts)-1]
	return append(res, int(last.PC-base)+last.Len())
}

// Check decodes t and verifies that every slot ends on an instruction
// boundary and that the whole template decodes cleanly.
func (t *Template) Check() error {
	insts := Disassemble(t.code, 0)
	starts := make(map[int]bool)
	for _, off := range Boundaries(insts) {
		starts[off] = true
	}
	for _, i := range insts {
		if !i.Valid {
			return fmt.Errorf("%s trampoline: undecodable byte at %d", t.name, i.PC)
		}
	}
	for _, s := range t.slots {
		if !starts[s.End] {
			return fmt.Errorf("%s trampoline: %s slot ends at %d, inside an instruction", t.name, s.Name, s.End)
		}
	}
	return nil
}
