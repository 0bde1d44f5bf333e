// Package elftest assembles small ELF64 little-endian images for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const DefaultVaddr = 0x400000

// Section indices of every image built by Build.
const (
	TextIndex     = 1
	DataIndex     = 2
	SymtabIndex   = 3
	StrtabIndex   = 4
	ShstrtabIndex = 5
)

// Sym is one symbol table entry. FUNC bodies go to .text, everything else
// with a body goes to .data.
type Sym struct {
	Name      string
	Type      elf.SymType
	Bind      elf.SymBind
	Vis       elf.SymVis
	Body      []byte
	Common    bool
	Undefined bool
}

type File struct {
	// Type defaults to ET_REL. ET_EXEC and ET_DYN images get a single
	// PT_LOAD segment mapping the whole file at Vaddr.
	Type    elf.Type
	Vaddr   uint64
	Symbols []Sym
}

type layout struct {
	buf   bytes.Buffer
	vaddr uint64
}

func (l *layout) align(n int) {
	for l.buf.Len()%n != 0 {
		l.buf.WriteByte(0)
	}
}

func (l *layout) off() uint64 { return uint64(l.buf.Len()) }

// Build returns the encoded image.
func Build(f File) []byte {
	if f.Type == elf.ET_NONE {
		f.Type = elf.ET_REL
	}
	loadable := f.Type == elf.ET_EXEC || f.Type == elf.ET_DYN
	if loadable && f.Vaddr == 0 {
		f.Vaddr = DefaultVaddr
	}

	var l layout
	l.buf.Write(make([]byte, 64))
	var phoff uint64
	if loadable {
		phoff = l.off()
		l.buf.Write(make([]byte, 56))
	}

	addr := func(off uint64) uint64 {
		if loadable {
			return f.Vaddr + off
		}
		return 0
	}

	l.align(16)
	textOff := l.off()
	values := make([]uint64, len(f.Symbols))
	for i, s := range f.Symbols {
		if s.Type == elf.STT_FUNC && !s.Common && !s.Undefined {
			values[i] = l.off() - textOff
			l.buf.Write(s.Body)
		}
	}
	textSize := l.off() - textOff

	l.align(8)
	dataOff := l.off()
	for i, s := range f.Symbols {
		if s.Type != elf.STT_FUNC && len(s.Body) > 0 && !s.Common && !s.Undefined {
			values[i] = l.off() - dataOff
			l.buf.Write(s.Body)
		}
	}
	dataSize := l.off() - dataOff

	strtab := []byte{0}
	names := make([]uint32, len(f.Symbols))
	for i, s := range f.Symbols {
		names[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}

	l.align(8)
	symtabOff := l.off()
	binary.Write(&l.buf, binary.LittleEndian, elf.Sym64{})
	for i, s := range f.Symbols {
		sym := elf.Sym64{
			Name:  names[i],
			Info:  elf.ST_INFO(s.Bind, s.Type),
			Other: byte(s.Vis),
			Size:  uint64(len(s.Body)),
		}
		switch {
		case s.Common:
			sym.Shndx = uint16(elf.SHN_COMMON)
			sym.Value = 8
		case s.Undefined:
			sym.Shndx = uint16(elf.SHN_UNDEF)
			sym.Size = 0
		case s.Type == elf.STT_FUNC:
			sym.Shndx = TextIndex
			sym.Value = values[i]
			if loadable {
				sym.Value = addr(textOff + values[i])
			}
		case len(s.Body) > 0:
			sym.Shndx = DataIndex
			sym.Value = values[i]
			if loadable {
				sym.Value = addr(dataOff + values[i])
			}
		default:
			sym.Shndx = uint16(elf.SHN_ABS)
		}
		binary.Write(&l.buf, binary.LittleEndian, sym)
	}
	symtabSize := l.off() - symtabOff

	strtabOff := l.off()
	l.buf.Write(strtab)

	shstrtab := []byte{0}
	shname := func(name string) uint32 {
		n := uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		return n
	}
	sections := []elf.Section64{
		{},
		{
			Name: shname(".text"), Type: uint32(elf.SHT_PROGBITS),
			Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr:  addr(textOff), Off: textOff, Size: textSize, Addralign: 16,
		},
		{
			Name: shname(".data"), Type: uint32(elf.SHT_PROGBITS),
			Flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
			Addr:  addr(dataOff), Off: dataOff, Size: dataSize, Addralign: 8,
		},
		{
			Name: shname(".symtab"), Type: uint32(elf.SHT_SYMTAB),
			Off: symtabOff, Size: symtabSize, Link: StrtabIndex, Info: 1,
			Addralign: 8, Entsize: 24,
		},
		{
			Name: shname(".strtab"), Type: uint32(elf.SHT_STRTAB),
			Off: strtabOff, Size: uint64(len(strtab)), Addralign: 1,
		},
	}
	shstrtabName := shname(".shstrtab")
	shstrtabOff := l.off()
	l.buf.Write(shstrtab)
	sections = append(sections, elf.Section64{
		Name: shstrtabName, Type: uint32(elf.SHT_STRTAB),
		Off: shstrtabOff, Size: uint64(len(shstrtab)), Addralign: 1,
	})

	l.align(8)
	shoff := l.off()
	for _, s := range sections {
		binary.Write(&l.buf, binary.LittleEndian, s)
	}

	out := l.buf.Bytes()
	h := elf.Header64{
		Type:      uint16(f.Type),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     phoff,
		Shoff:     shoff,
		Ehsize:    64,
		Phentsize: 56,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  ShstrtabIndex,
	}
	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	if loadable {
		h.Phnum = 1
		h.Entry = addr(textOff)
	}
	put(out[0:], h)
	if loadable {
		put(out[phoff:], elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Off:    0,
			Vaddr:  f.Vaddr,
			Paddr:  f.Vaddr,
			Filesz: uint64(len(out)),
			Memsz:  uint64(len(out)),
			Align:  0x1000,
		})
	}
	return out
}

func put(dst []byte, v any) {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, v)
	copy(dst, b.Bytes())
}

// Function returns a body that starts with prologue and is followed by
// padding NOPs and a final RET.
func Function(prologue []byte, padding int) []byte {
	body := append([]byte{}, prologue...)
	body = append(body, bytes.Repeat([]byte{0x90}, padding)...)
	return append(body, 0xc3)
}
