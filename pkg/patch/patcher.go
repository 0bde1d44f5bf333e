package patch

import (
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/layout"
)

type Config struct {
	HijackSymbol   string `yaml:"hijack_symbol"`
	MockSymbol     string `yaml:"mock_symbol"`
	TestMainSymbol string `yaml:"test_main_symbol"`
	Immediate      int64  `yaml:"immediate" category:"advanced"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.HijackSymbol, "patch.hijack-symbol", "gt_hijack", "Object holding the guard pointer compared by every trampoline.")
	f.StringVar(&cfg.MockSymbol, "patch.mock-symbol", "gt_mock", "Object holding the pointer to the mock function.")
	f.StringVar(&cfg.TestMainSymbol, "patch.test-main-symbol", "gt_test_main", "Function the program entry is redirected to.")
	f.Int64Var(&cfg.Immediate, "patch.immediate", 0, "Value loaded into rax before the mock is called.")
}

func (cfg *Config) Validate() error {
	names := map[string]string{
		"hijack":    cfg.HijackSymbol,
		"mock":      cfg.MockSymbol,
		"test main": cfg.TestMainSymbol,
	}
	seen := make(map[string]string, len(names))
	for what, name := range names {
		if name == "" {
			return fmt.Errorf("%s symbol name is empty", what)
		}
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s symbols are both named %q", other, what, name)
		}
		seen[name] = what
	}
	if cfg.Immediate < math.MinInt32 || cfg.Immediate > math.MaxInt32 {
		return fmt.Errorf("invalid immediate %d, must fit in 32 bits", cfg.Immediate)
	}
	return nil
}

type Outcome int

const (
	OutcomePatched Outcome = iota
	OutcomeSkipped
	OutcomeEntry
	OutcomeTestMain
	// OutcomeExternal is a function symbol without a body in this image.
	OutcomeExternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomePatched:
		return "patched"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeEntry:
		return "entry"
	case OutcomeTestMain:
		return "test_main"
	case OutcomeExternal:
		return "external"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type FunctionReport struct {
	Name    string
	Index   int
	Offset  uint64
	Padding uint64
	Outcome Outcome
	Result  Result
}

// Report summarizes a whole-image pass. Functions lists every FUNC symbol
// in symbol table order.
type Report struct {
	Entry     FunctionReport
	Patched   int
	Skipped   int
	Functions []FunctionReport
}

// Patcher redirects the entry function of an image to the test main and
// installs a mock trampoline in every other function with enough padding.
type Patcher struct {
	logger  log.Logger
	cfg     Config
	metrics *Metrics
}

func New(logger log.Logger, cfg Config, reg prometheus.Registerer) (*Patcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Patcher{
		logger:  logger,
		cfg:     cfg,
		metrics: NewMetrics(reg),
	}, nil
}

// Run patches img in memory. Nothing is written to disk.
func (p *Patcher) Run(img *elfimage.Image, entry string) (Report, error) {
	status := "success"
	defer func() {
		p.metrics.Images.WithLabelValues(status).Inc()
	}()

	img.Trace().Reset()
	report, err := p.run(img, entry)
	if err != nil {
		status = "failure"
		return Report{}, elfimage.Wrap(img.Trace(), err)
	}
	return report, nil
}

func (p *Patcher) run(img *elfimage.Image, entry string) (Report, error) {
	tr := img.Trace()
	h, err := img.Header()
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	switch h.FileType() {
	case elf.ET_REL, elf.ET_EXEC, elf.ET_DYN:
	default:
		return Report{}, elfimage.Newf(tr, elfimage.CodeType, "cannot patch %s images", h.FileType())
	}

	table, err := img.SymbolTable()
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	hijack, err := loadPointer(img, table, p.cfg.HijackSymbol)
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	mock, err := loadPointer(img, table, p.cfg.MockSymbol)
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	testMain, err := layout.AnalyzeByName(img, table, p.cfg.TestMainSymbol)
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	entryFn, err := layout.AnalyzeByName(img, table, entry)
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}

	res, err := PatchEntry(img, entryFn, testMain)
	if err != nil {
		return Report{}, elfimage.Wrap(tr, err)
	}
	p.metrics.BytesWritten.Add(float64(res.Written))
	level.Debug(p.logger).Log("msg", "entry redirected", "entry", entryFn.Name, "target", testMain.Name, "offset", res.Offset)

	report := Report{
		Entry: FunctionReport{
			Name:    entryFn.Name,
			Index:   entryFn.Symbol.Index,
			Offset:  entryFn.Offset,
			Padding: entryFn.Padding,
			Outcome: OutcomeEntry,
			Result:  res,
		},
	}

	var it elfimage.SymbolIterator
	for {
		err := it.Advance(img, table, elf.STT_FUNC)
		if errors.Is(err, elfimage.ErrDone) {
			break
		}
		if err != nil {
			return Report{}, elfimage.Wrap(tr, err)
		}
		sym, _ := it.Current()
		fr, err := p.visit(img, table, sym, entryFn, testMain, hijack, mock)
		if err != nil {
			return Report{}, elfimage.Wrap(tr, err)
		}
		switch fr.Outcome {
		case OutcomePatched:
			report.Patched++
			p.metrics.BytesWritten.Add(float64(fr.Result.Written))
		case OutcomeSkipped:
			report.Skipped++
		}
		p.metrics.Functions.WithLabelValues(fr.Outcome.String()).Inc()
		report.Functions = append(report.Functions, fr)
	}
	return report, nil
}

// loadPointer resolves one of the pointer objects the mock trampoline reads.
// An undefined or SHN_COMMON symbol has no storage in the image to address,
// so it is reported as not found rather than as an index error.
func loadPointer(img *elfimage.Image, table elfimage.Section, name string) (layout.SymbolInfo, error) {
	info, err := layout.LoadSymbolByName(img, table, name)
	if elfimage.CodeOf(err) == elfimage.CodeIndex {
		return layout.SymbolInfo{}, elfimage.Causef(img.Trace(), elfimage.CodeNotFound, err, "symbol %q has no storage in the image", name)
	}
	return info, err
}

func (p *Patcher) visit(img *elfimage.Image, table elfimage.Section, sym elfimage.Symbol, entry, testMain layout.FunctionInfo, hijack, mock layout.SymbolInfo) (FunctionReport, error) {
	tr := img.Trace()
	if idx := sym.SectionIndex(); idx == elf.SHN_UNDEF || idx >= elf.SHN_LORESERVE {
		name, err := img.SymbolName(table, sym)
		if err != nil {
			return FunctionReport{}, elfimage.Wrap(tr, err)
		}
		level.Debug(p.logger).Log("msg", "function has no body", "function", name)
		return FunctionReport{Name: name, Index: sym.Index, Outcome: OutcomeExternal}, nil
	}

	fn, err := layout.Analyze(img, table, sym)
	if err != nil {
		return FunctionReport{}, elfimage.Wrap(tr, err)
	}
	fr := FunctionReport{
		Name:    fn.Name,
		Index:   sym.Index,
		Offset:  fn.Offset,
		Padding: fn.Padding,
	}
	logger := log.With(p.logger, "function", fn.Name, "padding", fn.Padding)

	switch {
	case sym.Index == testMain.Symbol.Index:
		fr.Outcome = OutcomeTestMain
		level.Debug(logger).Log("msg", "test entry point")
	case sym.Index == entry.Symbol.Index:
		fr.Outcome = OutcomeEntry
		fr.Result = Result{Offset: entry.Start(), Written: EntryTrampolineSize}
		level.Debug(logger).Log("msg", "program entry point")
	case !fn.Patchable():
		fr.Outcome = OutcomeSkipped
		fr.Result = Result{Skipped: true}
		level.Debug(logger).Log("msg", "padding too small, skipping", "min", layout.MinPadding)
	default:
		res, err := Patch(img, fn, hijack, mock, WithImmediate(int32(p.cfg.Immediate)))
		if err != nil {
			return FunctionReport{}, elfimage.Wrap(tr, err)
		}
		fr.Outcome = OutcomePatched
		fr.Result = res
		level.Debug(logger).Log("msg", "trampoline written", "offset", res.Offset, "bytes", res.Written)
	}
	return fr, nil
}
