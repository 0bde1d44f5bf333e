package elfprint

import (
	"debug/elf"
	"strconv"

	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/layout"
)

// SectionIndex renders reserved indices by name and ordinary ones as plain
// numbers; elf.SectionIndex.String would print 7 as "SHN_UNDEF+7".
func SectionIndex(name string, i elf.SectionIndex) Field {
	if i == elf.SHN_UNDEF || i >= elf.SHN_LORESERVE {
		return Enum(name, i)
	}
	return Uint(name, uint64(i))
}

func sectionIndexName(i elf.SectionIndex) string {
	if i == elf.SHN_UNDEF || i >= elf.SHN_LORESERVE {
		return i.String()
	}
	return strconv.Itoa(int(i))
}

func HeaderFields(h elfimage.Header) []Field {
	return []Field{
		Bytes("e_ident[EI_MAG]", h.Ident[:elf.EI_CLASS]),
		Enum("e_ident[EI_CLASS]", h.Class()),
		Enum("e_ident[EI_DATA]", h.ByteOrder()),
		Enum("e_ident[EI_VERSION]", elf.Version(h.Ident[elf.EI_VERSION])),
		Enum("e_ident[EI_OSABI]", h.OSABI()),
		Uint("e_ident[EI_ABIVERSION]", uint64(h.Ident[elf.EI_ABIVERSION])),
		Enum("e_type", h.FileType()),
		Enum("e_machine", h.Arch()),
		Enum("e_version", h.FileVersion()),
		Hex("e_entry", h.Entry),
		Hex("e_phoff", h.Phoff),
		Hex("e_shoff", h.Shoff),
		Hex("e_flags", uint64(h.Flags)),
		Uint("e_ehsize", uint64(h.Ehsize)),
		Uint("e_phentsize", uint64(h.Phentsize)),
		Uint("e_phnum", uint64(h.Phnum)),
		Uint("e_shentsize", uint64(h.Shentsize)),
		Uint("e_shnum", uint64(h.Shnum)),
		Uint("e_shstrndx", uint64(h.Shstrndx)),
	}
}

func SectionFields(name string, s elfimage.Section) []Field {
	return []Field{
		Uint("index", uint64(s.Index)),
		String("name", name),
		Enum("sh_type", s.SectionType()),
		Enum("sh_flags", s.SectionFlags()),
		Hex("sh_addr", s.Addr),
		Hex("sh_offset", s.Off),
		Size("sh_size", s.Size),
		Uint("sh_link", uint64(s.Link)),
		Uint("sh_info", uint64(s.Info)),
		Uint("sh_addralign", s.Addralign),
		Uint("sh_entsize", s.Entsize),
	}
}

func ProgFields(p elfimage.Prog) []Field {
	return []Field{
		Uint("index", uint64(p.Index)),
		Enum("p_type", p.ProgType()),
		Enum("p_flags", p.ProgFlags()),
		Hex("p_offset", p.Off),
		Hex("p_vaddr", p.Vaddr),
		Hex("p_paddr", p.Paddr),
		Size("p_filesz", p.Filesz),
		Size("p_memsz", p.Memsz),
		Hex("p_align", p.Align),
	}
}

func SymbolFields(name string, s elfimage.Symbol) []Field {
	return []Field{
		Uint("index", uint64(s.Index)),
		String("name", name),
		Enum("st_type", s.SymType()),
		Enum("st_bind", s.Binding()),
		Enum("st_visibility", s.Visibility()),
		SectionIndex("st_shndx", s.SectionIndex()),
		Hex("st_value", s.Value),
		Size("st_size", s.Size),
	}
}

func FunctionFields(fn layout.FunctionInfo) []Field {
	return append(SymbolFields(fn.Name, fn.Symbol),
		Hex("file offset", fn.Offset),
		Bool("cfi prologue", fn.HasCFIPrologue),
		Uint("padding", fn.Padding),
		Bool("patchable", fn.Patchable()),
	)
}
