package elfimage

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gael12334/gt/pkg/elfimage/elftest"
)

func TestHeader(t *testing.T) {
	img := newTestImage(t, elftest.Build(testFile(elf.ET_REL)))

	h, err := img.Header()
	require.NoError(t, err)
	require.Equal(t, elf.ET_REL, h.FileType())
	require.Equal(t, elf.EM_X86_64, h.Arch())
	require.Equal(t, elf.ELFCLASS64, h.Class())
	require.Equal(t, elf.ELFDATA2LSB, h.ByteOrder())
	require.Equal(t, elf.EV_CURRENT, h.FileVersion())
	require.Equal(t, uint16(6), h.Shnum)
	require.Equal(t, uint16(elftest.ShstrtabIndex), h.Shstrndx)
	require.Zero(t, h.Phnum)
}

func TestHeaderRejects(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func([]byte) []byte
		code   Code
	}{
		{
			name:   "bad magic",
			mutate: func(b []byte) []byte { b[1] = 'X'; return b },
			code:   CodeFormat,
		},
		{
			name:   "32-bit",
			mutate: func(b []byte) []byte { b[elf.EI_CLASS] = byte(elf.ELFCLASS32); return b },
			code:   CodeNotImpl,
		},
		{
			name:   "big endian",
			mutate: func(b []byte) []byte { b[elf.EI_DATA] = byte(elf.ELFDATA2MSB); return b },
			code:   CodeNotImpl,
		},
		{
			name:   "truncated",
			mutate: func(b []byte) []byte { return b[:40] },
			code:   CodeSegfault,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img := newTestImage(t, tc.mutate(elftest.Build(testFile(elf.ET_REL))))
			_, err := img.Header()
			require.Equal(t, tc.code, CodeOf(err))

			_, err = img.Section(0)
			require.Equal(t, tc.code, CodeOf(err), "every accessor validates the header")
		})
	}
}

func TestSections(t *testing.T) {
	img := newTestImage(t, elftest.Build(testFile(elf.ET_REL)))

	sections, err := img.Sections()
	require.NoError(t, err)
	require.Len(t, sections, 6)

	names := make([]string, 0, len(sections))
	for i, s := range sections {
		require.Equal(t, i, s.Index)
		name, err := img.SectionName(s)
		require.NoError(t, err)
		names = append(names, name)

		byName, err := img.SectionByName(name)
		require.NoError(t, err)
		require.Equal(t, s, byName)
	}
	require.Equal(t, []string{"", ".text", ".data", ".symtab", ".strtab", ".shstrtab"}, names)

	text, err := img.Section(elftest.TextIndex)
	require.NoError(t, err)
	require.Equal(t, elf.SHT_PROGBITS, text.SectionType())
	require.Equal(t, elf.SHF_ALLOC|elf.SHF_EXECINSTR, text.SectionFlags())

	symtab, err := img.SectionByType(elf.SHT_SYMTAB)
	require.NoError(t, err)
	require.Equal(t, elftest.SymtabIndex, symtab.Index)

	_, err = img.SectionByType(elf.SHT_DYNSYM)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = img.SectionByName(".nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = img.Section(6)
	require.ErrorIs(t, err, ErrIndex)
	_, err = img.Section(-1)
	require.ErrorIs(t, err, ErrIndex)
}

func TestProgs(t *testing.T) {
	t.Run("relocatable", func(t *testing.T) {
		img := newTestImage(t, elftest.Build(testFile(elf.ET_REL)))
		progs, err := img.Progs()
		require.NoError(t, err)
		require.Empty(t, progs)
		_, err = img.Prog(0)
		require.ErrorIs(t, err, ErrIndex)
		_, err = img.ProgByType(elf.PT_LOAD)
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("executable", func(t *testing.T) {
		img := newTestImage(t, elftest.Build(testFile(elf.ET_EXEC)))
		progs, err := img.Progs()
		require.NoError(t, err)
		require.Len(t, progs, 1)

		load, err := img.ProgByType(elf.PT_LOAD)
		require.NoError(t, err)
		require.Equal(t, progs[0], load)
		require.Equal(t, elf.PT_LOAD, load.ProgType())
		require.Equal(t, elf.PF_R|elf.PF_X, load.ProgFlags())
		require.Equal(t, uint64(elftest.DefaultVaddr), load.Vaddr)
		require.Equal(t, uint64(64), load.Offset)
		require.Zero(t, load.Off)
	})
}

func TestStrings(t *testing.T) {
	img := newTestImage(t, elftest.Build(testFile(elf.ET_REL)))
	strtab, err := img.Section(elftest.StrtabIndex)
	require.NoError(t, err)

	strs, err := img.Strings(strtab)
	require.NoError(t, err)
	require.Equal(t, []StringEntry{
		{Index: 1, Value: "file.c"},
		{Index: 8, Value: "target"},
		{Index: 15, Value: "gt_hijack"},
		{Index: 25, Value: "gt_mock"},
		{Index: 33, Value: "common"},
	}, strs)

	s, err := img.String(strtab, 18)
	require.NoError(t, err)
	require.Equal(t, "hijack", s, "an index may point into the middle of a string")

	text, err := img.Section(elftest.TextIndex)
	require.NoError(t, err)
	_, err = img.String(text, 0)
	require.ErrorIs(t, err, ErrType)
	_, err = img.Strings(text)
	require.ErrorIs(t, err, ErrType)

	_, err = img.String(strtab, img.Size())
	require.ErrorIs(t, err, ErrSegfault)
}

func TestUnterminatedString(t *testing.T) {
	img := newTestImage(t, []byte("abc"))
	table := Section{Section64: elf.Section64{Type: uint32(elf.SHT_STRTAB), Size: 3}}

	_, err := img.String(table, 0)
	require.ErrorIs(t, err, ErrSegfault)
}
