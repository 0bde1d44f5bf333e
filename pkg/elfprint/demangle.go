package elfprint

import (
	"fmt"

	"github.com/ianlancetaylor/demangle"
)

// Demangle modes accepted by DemangleOptions.
const (
	DemangleNone       = "none"
	DemangleSimplified = "simplified"
	DemangleTemplates  = "templates"
	DemangleFull       = "full"
)

var DemangleModes = []string{DemangleNone, DemangleSimplified, DemangleTemplates, DemangleFull}

// Demangler rewrites C++ symbol names. The zero value leaves names alone.
type Demangler struct {
	enabled bool
	opts    []demangle.Option
}

func NewDemangler(mode string) (Demangler, error) {
	switch mode {
	case DemangleNone, "":
		return Demangler{}, nil
	case DemangleSimplified:
		return Demangler{enabled: true, opts: []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams, demangle.NoTemplateParams}}, nil
	case DemangleTemplates:
		return Demangler{enabled: true, opts: []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams}}, nil
	case DemangleFull:
		return Demangler{enabled: true, opts: []demangle.Option{demangle.NoClones}}, nil
	default:
		return Demangler{}, fmt.Errorf("unknown demangle mode %q", mode)
	}
}

// Name returns the demangled form of name, or name itself when it is not a
// mangled C++ symbol.
func (d Demangler) Name(name string) string {
	if !d.enabled {
		return name
	}
	return demangle.Filter(name, d.opts...)
}
