package elfprint

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/patch"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

// Heading writes a highlighted section title.
func Heading(w io.Writer, title string) {
	headingColor.Fprintln(w, title)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// WriteFields writes fields as a two-column table under title.
func WriteFields(w io.Writer, title string, fields []Field) {
	if title != "" {
		Heading(w, title)
	}
	table := newTable(w, "Field", "Value")
	for _, f := range fields {
		table.Append([]string{f.Name, f.Value()})
	}
	table.Render()
}

// NamedSection pairs a section header with its resolved name.
type NamedSection struct {
	Name string
	elfimage.Section
}

func WriteSections(w io.Writer, sections []NamedSection) {
	table := newTable(w, "Nr", "Name", "Type", "Flags", "Address", "Offset", "Size", "EntSize", "Link", "Info", "Align")
	for _, s := range sections {
		table.Append([]string{
			strconv.Itoa(s.Index),
			s.Name,
			s.SectionType().String(),
			s.SectionFlags().String(),
			fmt.Sprintf("%#x", s.Addr),
			fmt.Sprintf("%#x", s.Off),
			humanize.IBytes(s.Size),
			strconv.FormatUint(s.Entsize, 10),
			strconv.FormatUint(uint64(s.Link), 10),
			strconv.FormatUint(uint64(s.Info), 10),
			strconv.FormatUint(s.Addralign, 10),
		})
	}
	table.Render()
}

func WriteProgs(w io.Writer, progs []elfimage.Prog) {
	table := newTable(w, "Nr", "Type", "Flags", "Offset", "VirtAddr", "PhysAddr", "FileSize", "MemSize", "Align")
	for _, p := range progs {
		table.Append([]string{
			strconv.Itoa(p.Index),
			p.ProgType().String(),
			p.ProgFlags().String(),
			fmt.Sprintf("%#x", p.Off),
			fmt.Sprintf("%#x", p.Vaddr),
			fmt.Sprintf("%#x", p.Paddr),
			humanize.IBytes(p.Filesz),
			humanize.IBytes(p.Memsz),
			fmt.Sprintf("%#x", p.Align),
		})
	}
	table.Render()
}

// SymbolRow is a symbol with its name and, when it has one, its file
// offset.
type SymbolRow struct {
	Name      string
	Offset    uint64
	HasOffset bool
	elfimage.Symbol
}

func WriteSymbols(w io.Writer, rows []SymbolRow) {
	table := newTable(w, "Num", "Name", "Type", "Bind", "Vis", "Ndx", "Value", "Offset", "Size")
	for _, r := range rows {
		off := "-"
		if r.HasOffset {
			off = fmt.Sprintf("%#x", r.Offset)
		}
		table.Append([]string{
			strconv.Itoa(r.Index),
			r.Name,
			r.SymType().String(),
			r.Binding().String(),
			r.Visibility().String(),
			sectionIndexName(r.SectionIndex()),
			fmt.Sprintf("%#x", r.Value),
			off,
			strconv.FormatUint(r.Size, 10),
		})
	}
	table.Render()
}

func WriteStrings(w io.Writer, strs []elfimage.StringEntry) {
	table := newTable(w, "Index", "String")
	for _, s := range strs {
		table.Append([]string{strconv.FormatUint(s.Index, 10), s.Value})
	}
	table.Render()
}

// WriteDisassembly lists insts one per line with their raw bytes.
func WriteDisassembly(w io.Writer, insts []patch.Instruction) error {
	for _, i := range insts {
		if _, err := fmt.Fprintf(w, "%8x:\t%-24s\t%s\n", i.PC, fmt.Sprintf("% x", i.Raw), i); err != nil {
			return err
		}
	}
	return nil
}

// WriteReport writes the per-function outcome of a patch pass followed by
// a colored summary line.
func WriteReport(w io.Writer, report patch.Report, verbose bool) {
	if verbose {
		table := newTable(w, "Num", "Function", "Offset", "Padding", "Outcome", "Written")
		for _, fr := range report.Functions {
			table.Append([]string{
				strconv.Itoa(fr.Index),
				fr.Name,
				fmt.Sprintf("%#x", fr.Offset),
				strconv.FormatUint(fr.Padding, 10),
				fr.Outcome.String(),
				strconv.Itoa(fr.Result.Written),
			})
		}
		table.Render()
	}
	okColor.Fprintf(w, "Patched: %d\n", report.Patched)
	warnColor.Fprintf(w, "Skipped: %d\n", report.Skipped)
}
