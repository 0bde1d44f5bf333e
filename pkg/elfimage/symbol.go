package elfimage

import (
	"debug/elf"
	"math/bits"
)

const (
	SymbolTableName        = ".symtab"
	DynamicSymbolTableName = ".dynsym"
)

// Symbol is a decoded symbol table entry and the file offset it was read
// from.
type Symbol struct {
	Index  int
	Offset uint64
	elf.Sym64
}

func (s Symbol) SymType() elf.SymType { return elf.ST_TYPE(s.Info) }
func (s Symbol) Binding() elf.SymBind { return elf.ST_BIND(s.Info) }
func (s Symbol) Visibility() elf.SymVis { return elf.ST_VISIBILITY(s.Other) }
func (s Symbol) SectionIndex() elf.SectionIndex {
	return elf.SectionIndex(s.Shndx)
}

// SymbolTable returns the .symtab section.
func (img *Image) SymbolTable() (Section, error) {
	s, err := img.symbolTableNamed(SymbolTableName, elf.SHT_SYMTAB)
	return s, Wrap(img.trace, err)
}

// DynamicSymbolTable returns the .dynsym section.
func (img *Image) DynamicSymbolTable() (Section, error) {
	s, err := img.symbolTableNamed(DynamicSymbolTableName, elf.SHT_DYNSYM)
	return s, Wrap(img.trace, err)
}

func (img *Image) symbolTableNamed(name string, typ elf.SectionType) (Section, error) {
	s, err := img.SectionByName(name)
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	if s.SectionType() != typ {
		return Section{}, Newf(img.trace, CodeType, "section %s is %s, not %s", name, s.SectionType(), typ)
	}
	return s, nil
}

func (img *Image) checkSymbolTable(table Section) error {
	switch table.SectionType() {
	case elf.SHT_SYMTAB, elf.SHT_DYNSYM:
		return nil
	default:
		return Newf(img.trace, CodeType, "section %d is %s, not a symbol table", table.Index, table.SectionType())
	}
}

// SymbolCount is sh_size / sh_entsize of table.
func (img *Image) SymbolCount(table Section) (int, error) {
	if err := img.checkSymbolTable(table); err != nil {
		return 0, Wrap(img.trace, err)
	}
	if table.Entsize == 0 {
		return 0, Newf(img.trace, CodeDivZero, "section %d has a zero entry size", table.Index)
	}
	return int(table.Size / table.Entsize), nil
}

// SymbolStrings returns the string table linked to table through sh_link.
func (img *Image) SymbolStrings(table Section) (Section, error) {
	if err := img.checkSymbolTable(table); err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	strs, err := img.Section(int(table.Link))
	if err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	if err := img.checkStringTable(strs); err != nil {
		return Section{}, Wrap(img.trace, err)
	}
	return strs, nil
}

func (img *Image) Symbol(table Section, index int) (Symbol, error) {
	n, err := img.SymbolCount(table)
	if err != nil {
		return Symbol{}, Wrap(img.trace, err)
	}
	if index < 0 || index >= n {
		return Symbol{}, Newf(img.trace, CodeIndex, "symbol %d out of range [0, %d)", index, n)
	}
	return img.symbolAt(table, index)
}

// symbolAt decodes entry index of table without checking it against the
// symbol count.
func (img *Image) symbolAt(table Section, index int) (Symbol, error) {
	off, ok := tableOffset(table.Off, index, table.Entsize)
	if !ok {
		return Symbol{}, Newf(img.trace, CodeSegfault, "symbol %d offset overflows", index)
	}
	span, err := img.Resolve(off, max(symbolSize, table.Entsize))
	if err != nil {
		return Symbol{}, Wrap(img.trace, err)
	}
	s := Symbol{Index: index, Offset: off}
	decode(span[:symbolSize], &s.Sym64)
	return s, nil
}

func (img *Image) SymbolName(table Section, sym Symbol) (string, error) {
	strs, err := img.SymbolStrings(table)
	if err != nil {
		return "", Wrap(img.trace, err)
	}
	name, err := img.String(strs, uint64(sym.Name))
	if err != nil {
		return "", Wrap(img.trace, err)
	}
	return name, nil
}

// SymbolByName scans table in index order and returns the first symbol
// called name.
func (img *Image) SymbolByName(table Section, name string) (Symbol, error) {
	strs, err := img.SymbolStrings(table)
	if err != nil {
		return Symbol{}, Wrap(img.trace, err)
	}
	n, err := img.SymbolCount(table)
	if err != nil {
		return Symbol{}, Wrap(img.trace, err)
	}
	for i := 0; i < n; i++ {
		sym, err := img.symbolAt(table, i)
		if err != nil {
			return Symbol{}, Wrap(img.trace, err)
		}
		sname, err := img.String(strs, uint64(sym.Name))
		if err != nil {
			return Symbol{}, Wrap(img.trace, err)
		}
		if sname == name {
			return sym, nil
		}
	}
	return Symbol{}, Newf(img.trace, CodeNotFound, "no symbol named %q", name)
}

// SymbolOffset is the file offset of the first byte of a function or data
// symbol. Relocatable objects place st_value relative to the symbol's
// section; executables and PIEs place it relative to the first PT_LOAD
// segment.
func (img *Image) SymbolOffset(sym Symbol) (uint64, error) {
	switch sym.SymType() {
	case elf.STT_FUNC, elf.STT_OBJECT:
	default:
		return 0, Newf(img.trace, CodeType, "symbol %d is %s, not STT_FUNC or STT_OBJECT", sym.Index, sym.SymType())
	}
	h, err := img.Header()
	if err != nil {
		return 0, Wrap(img.trace, err)
	}
	switch sym.SectionIndex() {
	case elf.SHN_COMMON:
		return 0, Newf(img.trace, CodeIndex, "symbol %d is in the common block and has no file offset", sym.Index)
	case elf.SHN_UNDEF:
		return 0, Newf(img.trace, CodeIndex, "symbol %d is undefined", sym.Index)
	}

	switch h.FileType() {
	case elf.ET_REL:
		s, err := img.Section(int(sym.Shndx))
		if err != nil {
			return 0, Wrap(img.trace, err)
		}
		off, carry := bits.Add64(sym.Value, s.Off, 0)
		if carry != 0 {
			return 0, Newf(img.trace, CodeSegfault, "symbol %d offset overflows", sym.Index)
		}
		return off, nil
	case elf.ET_EXEC, elf.ET_DYN:
		load, err := img.ProgByType(elf.PT_LOAD)
		if err != nil {
			return 0, Wrap(img.trace, err)
		}
		if sym.Value < load.Vaddr {
			return 0, Newf(img.trace, CodeSegfault, "symbol %d at %#x is below the load segment at %#x", sym.Index, sym.Value, load.Vaddr)
		}
		off, carry := bits.Add64(sym.Value-load.Vaddr, load.Off, 0)
		if carry != 0 {
			return 0, Newf(img.trace, CodeSegfault, "symbol %d offset overflows", sym.Index)
		}
		return off, nil
	default:
		return 0, Newf(img.trace, CodeNotImpl, "unsupported ELF type %s", h.FileType())
	}
}

// SymbolBytes returns the st_size bytes of sym and their file offset.
func (img *Image) SymbolBytes(sym Symbol) ([]byte, uint64, error) {
	off, err := img.SymbolOffset(sym)
	if err != nil {
		return nil, 0, Wrap(img.trace, err)
	}
	b, err := img.Resolve(off, sym.Size)
	if err != nil {
		return nil, 0, Wrap(img.trace, err)
	}
	return b, off, nil
}
