package elfprint

import (
	"fmt"
	"io"
	"strings"
)

const hexDumpWidth = 16

// HexDump writes data 16 bytes per line, labelled with offsets starting at
// base, followed by the printable ASCII of each line.
func HexDump(w io.Writer, data []byte, base uint64) error {
	var sb strings.Builder
	for off := 0; off < len(data); off += hexDumpWidth {
		line := data[off:min(off+hexDumpWidth, len(data))]
		sb.Reset()
		fmt.Fprintf(&sb, "%08x ", base+uint64(off))
		for i := 0; i < hexDumpWidth; i++ {
			if i == hexDumpWidth/2 {
				sb.WriteByte(' ')
			}
			if i < len(line) {
				fmt.Fprintf(&sb, " %02x", line[i])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString("  |")
		for _, b := range line {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			sb.WriteByte(b)
		}
		sb.WriteString("|\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
