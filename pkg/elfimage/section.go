package elfimage

import (
	"debug/elf"
)

// Section is a decoded section header and the file offset it was read from.
type Section struct {
	Index  int
	Offset uint64
	elf.Section64
}

func (s Section) SectionType() elf.SectionType { return elf.SectionType(s.Type) }
func (s Section) SectionFlags() elf.SectionFlag { return elf.SectionFlag(s.Flags) }

func (img *Image) Section(index int) (Section, error) {
	h, err := img.Header()
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	if index < 0 || index >= int(h.Shnum) {
		return Section{}, Newf(img.trace, CodeIndex, "section %d out of range [0, %d)", index, h.Shnum)
	}
	off, ok := tableOffset(h.Shoff, index, uint64(h.Shentsize))
	if !ok {
		return Section{}, Newf(img.trace, CodeSegfault, "section %d offset overflows", index)
	}
	span, err := img.Resolve(off, sectionSize)
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	s := Section{Index: index, Offset: off}
	decode(span, &s.Section64)
	return s, nil
}

// SectionNameTable returns the section header string table (e_shstrndx).
func (img *Image) SectionNameTable() (Section, error) {
	h, err := img.Header()
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	s, err := img.Section(int(h.Shstrndx))
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	return s, nil
}

func (img *Image) SectionName(s Section) (string, error) {
	names, err := img.SectionNameTable()
	if err != nil {
		return "", Wrap(img.trace, err)
	}
	name, err := img.String(names, uint64(s.Name))
	if err != nil {
		return "", Wrap(img.trace, err)
	}
	return name, nil
}

// SectionByName scans every section header and returns the first whose
// name is name.
func (img *Image) SectionByName(name string) (Section, error) {
	h, err := img.Header()
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	names, err := img.SectionNameTable()
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	for i := 0; i < int(h.Shnum); i++ {
		s, err := img.Section(i)
		if err != nil {
			return Section{}, Wrap(img.trace, err)
		}
		sname, err := img.String(names, uint64(s.Name))
		if err != nil {
			return Section{}, Wrap(img.trace, err)
		}
		if sname == name {
			return s, nil
		}
	}
	return Section{}, Newf(img.trace, CodeNotFound, "no section named %q", name)
}

// SectionByType returns the first section of type typ.
func (img *Image) SectionByType(typ elf.SectionType) (Section, error) {
	h, err := img.Header()
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	for i := 0; i < int(h.Shnum); i++ {
		s, err := img.Section(i)
		if err != nil {
			return Section{}, Wrap(img.trace, err)
		}
		if s.SectionType() == typ {
			return s, nil
		}
	}
	return Section{}, Newf(img.trace, CodeNotFound, "no %s section", typ)
}

func (img *Image) Sections() ([]Section, error) {
	h, err := img.Header()
	if err != nil {
		return nil, Wrap(img.trace, err)
	}
	res := make([]Section, 0, h.Shnum)
	for i := 0; i < int(h.Shnum); i++ {
		s, err := img.Section(i)
		if err != nil {
			return nil, Wrap(img.trace, err)
		}
		res = append(res, s)
	}
	return res, nil
}
