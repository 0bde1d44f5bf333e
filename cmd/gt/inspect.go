package main

import (
	"cmp"
	"context"
	"debug/elf"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	gtcontext "github.com/gael12334/gt/pkg/context"
	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/elfprint"
	"github.com/gael12334/gt/pkg/layout"
	"github.com/gael12334/gt/pkg/patch"
)

func (c *cli) header(ctx context.Context, path string) error {
	return c.withImage(ctx, path, func(_ *elfimage.Store, img *elfimage.Image) error {
		h, err := img.Header()
		if err != nil {
			return err
		}
		elfprint.WriteFields(gtcontext.Output(ctx), "ELF header", elfprint.HeaderFields(h))
		return nil
	})
}

func (c *cli) program(ctx context.Context, path string) error {
	return c.withImage(ctx, path, func(_ *elfimage.Store, img *elfimage.Image) error {
		progs, err := img.Progs()
		if err != nil {
			return err
		}
		out := gtcontext.Output(ctx)
		if len(progs) == 0 {
			fmt.Fprintln(out, "There are no program headers in this file.")
			return nil
		}
		elfprint.Heading(out, "Program headers")
		elfprint.WriteProgs(out, progs)
		return nil
	})
}

func (c *cli) section(ctx context.Context, path string) error {
	return c.withImage(ctx, path, func(_ *elfimage.Store, img *elfimage.Image) error {
		sections, err := img.Sections()
		if err != nil {
			return err
		}
		named := make([]elfprint.NamedSection, 0, len(sections))
		for _, s := range sections {
			name, err := img.SectionName(s)
			if err != nil {
				return err
			}
			named = append(named, elfprint.NamedSection{Name: name, Section: s})
		}
		out := gtcontext.Output(ctx)
		elfprint.Heading(out, "Section headers")
		elfprint.WriteSections(out, named)
		return nil
	})
}

type stringsParams struct {
	file    string
	section string
}

func addStringsParams(cmd commander) *stringsParams {
	params := &stringsParams{}
	cmd.Arg("file", "ELF64 image path.").Required().ExistingFileVar(&params.file)
	cmd.Flag("section", "Name of the string table to dump.").Default(".strtab").StringVar(&params.section)
	return params
}

func (c *cli) stringTable(ctx context.Context, params *stringsParams) error {
	return c.withImage(ctx, params.file, func(_ *elfimage.Store, img *elfimage.Image) error {
		table, err := img.SectionByName(params.section)
		if err != nil {
			return err
		}
		strs, err := img.Strings(table)
		if err != nil {
			return err
		}
		out := gtcontext.Output(ctx)
		elfprint.Heading(out, "String table "+params.section)
		elfprint.WriteStrings(out, strs)
		return nil
	})
}

type funclistParams struct {
	file     string
	demangle string
	objects  bool
}

func addFunclistParams(cmd commander) *funclistParams {
	params := &funclistParams{}
	cmd.Arg("file", "ELF64 image path.").Required().ExistingFileVar(&params.file)
	cmd.Flag("demangle", "C++ demangling mode ("+strings.Join(elfprint.DemangleModes, ", ")+").").Default(elfprint.DemangleNone).EnumVar(&params.demangle, elfprint.DemangleModes...)
	cmd.Flag("objects", "Also list data object symbols.").Default("false").BoolVar(&params.objects)
	return params
}

func (c *cli) funclist(ctx context.Context, params *funclistParams) error {
	demangler, err := elfprint.NewDemangler(params.demangle)
	if err != nil {
		return err
	}
	return c.withImage(ctx, params.file, func(_ *elfimage.Store, img *elfimage.Image) error {
		table, err := img.SymbolTable()
		if err != nil {
			return err
		}
		types := []elf.SymType{elf.STT_FUNC}
		if params.objects {
			types = append(types, elf.STT_OBJECT)
		}
		var syms []elfimage.Symbol
		for _, typ := range types {
			found, err := img.SymbolsOfType(table, typ)
			if err != nil {
				return err
			}
			syms = append(syms, found...)
		}
		slices.SortFunc(syms, func(a, b elfimage.Symbol) int { return cmp.Compare(a.Index, b.Index) })
		syms = lo.Filter(syms, func(s elfimage.Symbol, _ int) bool {
			return s.Visibility() != elf.STV_HIDDEN
		})

		rows := make([]elfprint.SymbolRow, 0, len(syms))
		for _, s := range syms {
			name, err := img.SymbolName(table, s)
			if err != nil {
				return err
			}
			row := elfprint.SymbolRow{Name: demangler.Name(name), Symbol: s}
			if hasBody(s) {
				off, err := img.SymbolOffset(s)
				if err != nil {
					return err
				}
				row.Offset, row.HasOffset = off, true
			}
			rows = append(rows, row)
		}
		out := gtcontext.Output(ctx)
		elfprint.Heading(out, fmt.Sprintf("Symbol table %s contains %d matching entries", elfimage.SymbolTableName, len(rows)))
		elfprint.WriteSymbols(out, rows)
		return nil
	})
}

// hasBody reports whether sym lives in a regular section of the image.
func hasBody(sym elfimage.Symbol) bool {
	idx := sym.SectionIndex()
	return idx != elf.SHN_UNDEF && idx < elf.SHN_LORESERVE
}

type funcParams struct {
	file   string
	name   string
	dump   bool
	disasm bool
}

func addFuncParams(cmd commander) *funcParams {
	params := &funcParams{}
	cmd.Arg("file", "ELF64 image path.").Required().ExistingFileVar(&params.file)
	cmd.Arg("name", "Function symbol name.").Required().StringVar(&params.name)
	cmd.Flag("dump", "Hex dump the function body.").Default("false").BoolVar(&params.dump)
	cmd.Flag("disasm", "Disassemble the function body.").Default("false").BoolVar(&params.disasm)
	return params
}

func (c *cli) function(ctx context.Context, params *funcParams) error {
	return c.withImage(ctx, params.file, func(_ *elfimage.Store, img *elfimage.Image) error {
		table, err := img.SymbolTable()
		if err != nil {
			return err
		}
		fn, err := layout.AnalyzeByName(img, table, params.name)
		if err != nil {
			return err
		}
		out := gtcontext.Output(ctx)
		elfprint.WriteFields(out, "Function "+fn.Name, elfprint.FunctionFields(fn))
		if !params.dump && !params.disasm {
			return nil
		}

		body, _, err := img.SymbolBytes(fn.Symbol)
		if err != nil {
			return err
		}
		if params.dump {
			elfprint.Heading(out, "Hex dump")
			if err := elfprint.HexDump(out, body, fn.Offset); err != nil {
				return err
			}
		}
		if params.disasm {
			elfprint.Heading(out, "Disassembly")
			if err := elfprint.WriteDisassembly(out, patch.Disassemble(body, fn.Offset)); err != nil {
				return err
			}
		}
		return nil
	})
}
