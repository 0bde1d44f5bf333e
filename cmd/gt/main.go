package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	_ "github.com/gael12334/gt/pkg/build"
	"github.com/gael12334/gt/pkg/config"
	gtcontext "github.com/gael12334/gt/pkg/context"
	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/trace"
)

var cfg struct {
	verbose    bool
	configFile string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Inspect ELF64 images and patch their functions with mock trampolines.").UsageWriter(os.Stdout)
	app.Version(version.Print("gt"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("config.file", "YAML file to load.").StringVar(&cfg.configFile)

	headerCmd := app.Command("header", "Print the ELF file header.")
	headerFile := addFileArg(headerCmd)
	programCmd := app.Command("program", "List the program headers.")
	programFile := addFileArg(programCmd)
	sectionCmd := app.Command("section", "List the section headers.")
	sectionFile := addFileArg(sectionCmd)
	stringsCmd := app.Command("strings", "Dump a string table.")
	stringsParams := addStringsParams(stringsCmd)
	funclistCmd := app.Command("funclist", "List function symbols.")
	funclistParams := addFunclistParams(funclistCmd)
	funcCmd := app.Command("func", "Describe a single function.")
	funcParams := addFuncParams(funcCmd)
	patchCmd := app.Command("patch", "Redirect the entry function and install mock trampolines.")
	patchParams := addPatchParams(patchCmd)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	ctx := gtcontext.WithLogger(context.Background(), logger)
	ctx = gtcontext.WithOutput(ctx, os.Stdout)

	c, err := newCLI(afero.NewOsFs(), cfg.configFile)
	if err != nil {
		os.Exit(checkError(err))
	}

	switch parsedCmd {
	case headerCmd.FullCommand():
		os.Exit(checkError(c.header(ctx, *headerFile)))
	case programCmd.FullCommand():
		os.Exit(checkError(c.program(ctx, *programFile)))
	case sectionCmd.FullCommand():
		os.Exit(checkError(c.section(ctx, *sectionFile)))
	case stringsCmd.FullCommand():
		os.Exit(checkError(c.stringTable(ctx, stringsParams)))
	case funclistCmd.FullCommand():
		os.Exit(checkError(c.funclist(ctx, funclistParams)))
	case funcCmd.FullCommand():
		os.Exit(checkError(c.function(ctx, funcParams)))
	case patchCmd.FullCommand():
		os.Exit(checkError(c.patch(ctx, patchParams)))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

// checkError prints err and, when it carries one, the trace of the image
// operation that failed. It returns the process exit code.
func checkError(err error) int {
	return reportError(consoleOutput, err)
}

func reportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "error: %v\n", err)
	var te *tracedError
	if errors.As(err, &te) && te.trace.HasError() {
		fmt.Fprintln(w, "trace:")
		_ = te.trace.Dump(w)
	}
	return 1
}

type commander interface {
	Flag(name, help string) *kingpin.FlagClause
	Arg(name, help string) *kingpin.ArgClause
}

func addFileArg(cmd commander) *string {
	return cmd.Arg("file", "ELF64 image path.").Required().ExistingFile()
}

type cli struct {
	fs  afero.Fs
	cfg config.Config
}

func newCLI(fs afero.Fs, configFile string) (*cli, error) {
	c := &cli{fs: fs, cfg: config.Default()}
	if configFile != "" {
		if err := c.cfg.LoadFile(fs, configFile); err != nil {
			return nil, err
		}
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// tracedError keeps the trace of the store an error came from so that
// checkError can dump it.
type tracedError struct {
	err   error
	trace *trace.Trace
}

func (e *tracedError) Error() string { return e.err.Error() }
func (e *tracedError) Unwrap() error { return e.err }

// withImage loads path, hands the live image to fn and unloads it again.
// Unload failures are combined with the error returned by fn.
func (c *cli) withImage(ctx context.Context, path string, fn func(*elfimage.Store, *elfimage.Image) error) (err error) {
	store := elfimage.NewStore(c.fs, c.cfg.Image, gtcontext.Logger(ctx))
	defer func() {
		if err != nil {
			err = &tracedError{err: err, trace: store.Trace()}
		}
	}()

	if err := store.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	defer func() {
		if uerr := store.Unload(); uerr != nil {
			err = multierror.Append(err, uerr).ErrorOrNil()
		}
	}()

	img, err := store.Image()
	if err != nil {
		return err
	}
	return fn(store, img)
}
