package elfimage

import (
	"debug/elf"
)

// Prog is a decoded program header and the file offset it was read from.
type Prog struct {
	Index  int
	Offset uint64
	elf.Prog64
}

func (p Prog) ProgType() elf.ProgType { return elf.ProgType(p.Type) }
func (p Prog) ProgFlags() elf.ProgFlag { return elf.ProgFlag(p.Flags) }

func (img *Image) Prog(index int) (Prog, error) {
	h, err := img.Header()
	if err != nil {
		return Prog{}, Wrap(img.trace, err)
	}
	if index < 0 || index >= int(h.Phnum) {
		return Prog{}, Newf(img.trace, CodeIndex, "program header %d out of range [0, %d)", index, h.Phnum)
	}
	off, ok := tableOffset(h.Phoff, index, uint64(h.Phentsize))
	if !ok {
		return Prog{}, Newf(img.trace, CodeSegfault, "program header %d offset overflows", index)
	}
	span, err := img.Resolve(off, progSize)
	if err != nil {
		return Prog{}, Wrap(img.trace, err)
	}
	p := Prog{Index: index, Offset: off}
	decode(span, &p.Prog64)
	return p, nil
}

// ProgByType returns the first program header of type typ.
func (img *Image) ProgByType(typ elf.ProgType) (Prog, error) {
	h, err := img.Header()
	if err != nil {
		return Prog{}, Wrap(img.trace, err)
	}
	for i := 0; i < int(h.Phnum); i++ {
		p, err := img.Prog(i)
		if err != nil {
			return Prog{}, Wrap(img.trace, err)
		}
		if p.ProgType() == typ {
			return p, nil
		}
	}
	return Prog{}, Newf(img.trace, CodeNotFound, "no %s program header", typ)
}

func (img *Image) Progs() ([]Prog, error) {
	h, err := img.Header()
	if err != nil {
		return nil, Wrap(img.trace, err)
	}
	res := make([]Prog, 0, h.Phnum)
	for i := 0; i < int(h.Phnum); i++ {
		p, err := img.Prog(i)
		if err != nil {
			return nil, Wrap(img.trace, err)
		}
		res = append(res, p)
	}
	return res, nil
}
