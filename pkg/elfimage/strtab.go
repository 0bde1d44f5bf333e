package elfimage

import (
	"bytes"
	"debug/elf"
	"math/bits"
)

// StringEntry is one string of a string table and its index in the table.
type StringEntry struct {
	Index uint64
	Value string
}

func (img *Image) checkStringTable(table Section) error {
	if table.SectionType() != elf.SHT_STRTAB {
		return Newf(img.trace, CodeType, "section %d is %s, not SHT_STRTAB", table.Index, table.SectionType())
	}
	return nil
}

// StringBytes returns the NUL-terminated run at index in table, without the
// terminator. The terminator must lie inside the image.
func (img *Image) StringBytes(table Section, index uint64) ([]byte, error) {
	if err := img.checkStringTable(table); err != nil {
		return nil, Wrap(img.trace, err)
	}
	off, carry := bits.Add64(table.Off, index, 0)
	if carry != 0 {
		return nil, Newf(img.trace, CodeSegfault, "string %d of section %d overflows", index, table.Index)
	}
	tail, err := img.Resolve(off, img.Size()-min(off, img.Size()))
	if err != nil {
		return nil, Wrap(img.trace, err)
	}
	end := bytes.IndexByte(tail, 0)
	if end < 0 {
		return nil, Newf(img.trace, CodeSegfault, "string at %#x is not terminated before the end of the image", off)
	}
	return tail[:end:end], nil
}

func (img *Image) String(table Section, index uint64) (string, error) {
	b, err := img.StringBytes(table, index)
	if err != nil {
		return "", Wrap(img.trace, err)
	}
	return string(b), nil
}

// Strings lists every string of table. The leading empty string at index 0
// is skipped.
func (img *Image) Strings(table Section) ([]StringEntry, error) {
	if err := img.checkStringTable(table); err != nil {
		return nil, Wrap(img.trace, err)
	}
	var res []StringEntry
	for i := uint64(1); i < table.Size; i++ {
		b, err := img.StringBytes(table, i)
		if err != nil {
			return nil, Wrap(img.trace, err)
		}
		res = append(res, StringEntry{Index: i, Value: string(b)})
		i += uint64(len(b))
	}
	return res, nil
}
