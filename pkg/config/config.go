// Package config aggregates the settings of every gt component and loads
// them from flags and YAML files.
package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/gael12334/gt/pkg/elfimage"
	"github.com/gael12334/gt/pkg/patch"
)

type Config struct {
	ConfigFile string `yaml:"-"`

	Image elfimage.Config `yaml:"image"`
	Patch patch.Config    `yaml:"patch"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.ConfigFile, "config.file", "", "yaml file to load")
	c.Image.RegisterFlags(f)
	c.Patch.RegisterFlags(f)
}

// Validate reports every invalid component config, not only the first.
func (c *Config) Validate() error {
	var result *multierror.Error
	if err := c.Image.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "invalid image config"))
	}
	if err := c.Patch.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "invalid patch config"))
	}
	return result.ErrorOrNil()
}

// Default returns the config with every flag default applied.
func Default() Config {
	var c Config
	fs := flag.NewFlagSet("gt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.RegisterFlags(fs)
	return c
}

// Decode overlays the YAML document read from r onto c. Unknown keys are
// rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()
	if err := c.Decode(f); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}
