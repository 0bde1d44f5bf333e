package elfimage

import (
	"flag"
	"fmt"

	"github.com/gael12334/gt/pkg/trace"
	"github.com/gael12334/gt/pkg/util/bytesize"
)

const defaultOutput = "out"

type Config struct {
	// MaxImageSize bounds the buffer Load is willing to allocate.
	MaxImageSize bytesize.ByteSize `yaml:"max_image_size"`
	// Output is where Save writes when it is not given a path.
	Output string `yaml:"output"`
	// InPlace makes Save overwrite the file the image was loaded from and
	// takes precedence over Output.
	InPlace       bool `yaml:"in_place"`
	TraceCapacity int  `yaml:"trace_capacity" category:"advanced"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.MaxImageSize = 512 * bytesize.MiB
	f.Var(&cfg.MaxImageSize, "image.max-size", "Largest ELF image that can be loaded.")
	f.StringVar(&cfg.Output, "image.output", defaultOutput, "Path the patched image is written to.")
	f.BoolVar(&cfg.InPlace, "image.in-place", false, "Overwrite the input image instead of writing to -image.output.")
	f.IntVar(&cfg.TraceCapacity, "image.trace-capacity", trace.DefaultCapacity, "Maximum number of frames kept in the error trace.")
}

func (cfg *Config) Validate() error {
	if !cfg.InPlace && cfg.Output == "" {
		return fmt.Errorf("image output path is empty and in-place writing is disabled")
	}
	if cfg.TraceCapacity < 0 {
		return fmt.Errorf("invalid trace capacity %d, must not be negative", cfg.TraceCapacity)
	}
	return nil
}
