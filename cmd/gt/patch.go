package main

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	gtcontext "github.com/gael12334/gt/pkg/context"
	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/elfprint"
	"github.com/gael12334/gt/pkg/patch"
)

type patchParams struct {
	file            string
	entry           string
	output          string
	inPlace         *bool
	hijackSymbol    string
	mockSymbol      string
	testMainSymbol  string
	immediate       *int64
	metricsTextfile string
	report          bool
}

func addPatchParams(cmd commander) *patchParams {
	params := &patchParams{}
	var (
		inPlace   bool
		immediate int64
	)
	cmd.Arg("file", "ELF64 image path.").Required().ExistingFileVar(&params.file)
	cmd.Arg("entry", "Function redirected to the test main.").Required().StringVar(&params.entry)
	cmd.Flag("output", "Path the patched image is written to. Defaults to the configured image output.").StringVar(&params.output)
	cmd.Flag("in-place", "Overwrite the input image.").Action(func(*kingpin.ParseContext) error {
		params.inPlace = &inPlace
		return nil
	}).BoolVar(&inPlace)
	cmd.Flag("hijack-symbol", "Override the guard pointer object name.").StringVar(&params.hijackSymbol)
	cmd.Flag("mock-symbol", "Override the mock pointer object name.").StringVar(&params.mockSymbol)
	cmd.Flag("test-main-symbol", "Override the test main function name.").StringVar(&params.testMainSymbol)
	cmd.Flag("immediate", "Override the value loaded into rax before the mock is called.").Action(func(*kingpin.ParseContext) error {
		params.immediate = &immediate
		return nil
	}).Int64Var(&immediate)
	cmd.Flag("metrics.textfile", "Write patch metrics in the Prometheus text format to this file.").StringVar(&params.metricsTextfile)
	cmd.Flag("report", "Print the outcome of every function.").Default("false").BoolVar(&params.report)
	return params
}

// apply overlays the flags that were given onto the loaded config. The
// in-place and immediate flags are nil unless they appeared on the command
// line, so an explicit false or zero still overrides the file.
func (p *patchParams) apply(c *cli) error {
	if p.output != "" {
		c.cfg.Image.Output = p.output
	}
	if p.inPlace != nil {
		c.cfg.Image.InPlace = *p.inPlace
	}
	for dst, src := range map[*string]string{
		&c.cfg.Patch.HijackSymbol:   p.hijackSymbol,
		&c.cfg.Patch.MockSymbol:     p.mockSymbol,
		&c.cfg.Patch.TestMainSymbol: p.testMainSymbol,
	} {
		if src != "" {
			*dst = src
		}
	}
	if p.immediate != nil {
		c.cfg.Patch.Immediate = *p.immediate
	}
	return c.cfg.Validate()
}

func (c *cli) patch(ctx context.Context, params *patchParams) error {
	if err := params.apply(c); err != nil {
		return err
	}
	logger := gtcontext.Logger(ctx)
	reg := gtcontext.Registry(ctx)
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	patcher, err := patch.New(logger, c.cfg.Patch, reg)
	if err != nil {
		return err
	}
	return c.withImage(ctx, params.file, func(store *elfimage.Store, img *elfimage.Image) error {
		report, err := patcher.Run(img, params.entry)
		if err != nil {
			return errors.Wrapf(err, "patch %s", params.file)
		}
		out := store.OutputPath()
		if err := store.Save(out); err != nil {
			return err
		}
		level.Info(logger).Log("msg", "image patched", "output", out, "entry", report.Entry.Name, "patched", report.Patched, "skipped", report.Skipped)
		elfprint.WriteReport(gtcontext.Output(ctx), report, params.report)

		if params.metricsTextfile != "" && gatherer != nil {
			if err := prometheus.WriteToTextfile(params.metricsTextfile, gatherer); err != nil {
				return errors.Wrap(err, "write metrics textfile")
			}
		}
		return nil
	})
}
