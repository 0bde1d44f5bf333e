package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"math/bits"
)

var (
	headerSize  = uint64(binary.Size(elf.Header64{}))
	progSize    = uint64(binary.Size(elf.Prog64{}))
	sectionSize = uint64(binary.Size(elf.Section64{}))
	symbolSize  = uint64(binary.Size(elf.Sym64{}))
)

// Header is the decoded ELF file header.
type Header struct {
	elf.Header64
}

func (h Header) FileType() elf.Type { return elf.Type(h.Type) }
func (h Header) Arch() elf.Machine { return elf.Machine(h.Machine) }
func (h Header) Class() elf.Class { return elf.Class(h.Ident[elf.EI_CLASS]) }
func (h Header) ByteOrder() elf.Data { return elf.Data(h.Ident[elf.EI_DATA]) }
func (h Header) OSABI() elf.OSABI { return elf.OSABI(h.Ident[elf.EI_OSABI]) }
func (h Header) FileVersion() elf.Version { return elf.Version(h.Version) }

// Header decodes the file header at offset 0. Images that are not ELF
// fail with CodeFormat; 32-bit and big-endian images with CodeNotImpl.
func (img *Image) Header() (Header, error) {
	span, err := img.Resolve(0, headerSize)
	if err != nil {
		return Header{}, Wrap(img.trace, err)
	}
	var h Header
	decode(span, &h.Header64)

	if !bytes.Equal(h.Ident[:len(elf.ELFMAG)], []byte(elf.ELFMAG)) {
		return Header{}, Newf(img.trace, CodeFormat, "bad magic % x", h.Ident[:len(elf.ELFMAG)])
	}
	if h.Class() != elf.ELFCLASS64 {
		return Header{}, Newf(img.trace, CodeNotImpl, "unsupported class %s", h.Class())
	}
	if h.ByteOrder() != elf.ELFDATA2LSB {
		return Header{}, Newf(img.trace, CodeNotImpl, "unsupported data encoding %s", h.ByteOrder())
	}
	return h, nil
}

// decode fills v from span. Callers resolve exactly binary.Size(v) bytes,
// so the read cannot come up short.
func decode(span []byte, v any) {
	_ = binary.Read(bytes.NewReader(span), binary.LittleEndian, v)
}

// tableOffset computes base + index*stride and reports whether it overflowed.
func tableOffset(base uint64, index int, stride uint64) (uint64, bool) {
	hi, lo := bits.Mul64(uint64(index), stride)
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(base, lo, 0)
	return sum, carry == 0
}
