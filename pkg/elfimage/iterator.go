package elfimage

import (
	"debug/elf"
	"errors"
)

// SymbolIterator walks a symbol table in ascending index order, stopping
// at every symbol of a requested type. The zero value is ready to use.
//
//	var it SymbolIterator
//	for {
//		if err := it.Advance(img, table, elf.STT_FUNC); err != nil {
//			if errors.Is(err, ErrDone) {
//				break
//			}
//			return err
//		}
//		sym, _ := it.Current()
//		...
//	}
type SymbolIterator struct {
	current   Symbol
	matched   bool
	last      int
	started   bool
	exhausted bool
}

// Reset returns the iterator to its initial state.
func (it *SymbolIterator) Reset() {
	*it = SymbolIterator{}
}

// Current is the symbol found by the last successful Advance.
func (it *SymbolIterator) Current() (Symbol, bool) {
	return it.current, it.matched
}

// Exhausted reports whether no further symbol can be produced. It becomes
// true as soon as the last entry of the table has been visited, even when
// that entry matched.
func (it *SymbolIterator) Exhausted() bool {
	return it.exhausted
}

// Advance moves to the next symbol of type typ. At the end of the table it
// clears the current match and returns ErrDone; an exhausted iterator keeps
// returning ErrDone until Reset.
func (it *SymbolIterator) Advance(img *Image, table Section, typ elf.SymType) error {
	if it.exhausted {
		it.current, it.matched = Symbol{}, false
		return Newf(img.trace, CodeDone, "symbol iteration is over")
	}
	n, err := img.SymbolCount(table)
	if err != nil {
		return Wrap(img.trace, err)
	}
	start := 0
	if it.started {
		start = it.last + 1
	}
	for i := start; i < n; i++ {
		sym, err := img.symbolAt(table, i)
		if err != nil {
			return Wrap(img.trace, err)
		}
		it.started = true
		it.last = i
		if sym.SymType() == typ {
			it.current, it.matched = sym, true
			it.exhausted = i == n-1
			return nil
		}
	}
	it.current, it.matched = Symbol{}, false
	it.exhausted = true
	return Newf(img.trace, CodeDone, "no more %s symbols", typ)
}

// SymbolsOfType returns every symbol of type typ in index order.
func (img *Image) SymbolsOfType(table Section, typ elf.SymType) ([]Symbol, error) {
	var (
		it  SymbolIterator
		res []Symbol
	)
	for {
		err := it.Advance(img, table, typ)
		if errors.Is(err, ErrDone) {
			return res, nil
		}
		if err != nil {
			return nil, Wrap(img.trace, err)
		}
		sym, _ := it.Current()
		res = append(res, sym)
	}
}
