// Package config loads pyoutline settings from defaults, a YAML file,
// PYOUTLINE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/phobologic/pyoutline/internal/analyzer"
	"github.com/phobologic/pyoutline/internal/discover"
	"github.com/phobologic/pyoutline/internal/lang"
)

// FileName is the config file looked up in the analyzed root.
const FileName = ".pyoutline.yaml"

// Formats lists the supported output formats.
var Formats = []string{"json", "toon"}

// Config is the complete pyoutline configuration.
type Config struct {
	Suffix     string     `yaml:"suffix" mapstructure:"suffix"`
	Workers    int        `yaml:"workers" mapstructure:"workers"`         // 0 = GOMAXPROCS, 1 = sequential
	StrictRead bool       `yaml:"strict_read" mapstructure:"strict_read"` // abort on unreadable files
	Format     string     `yaml:"format" mapstructure:"format"`           // json or toon
	Output     string     `yaml:"output" mapstructure:"output"`           // file path, empty for stdout
	SQLite     string     `yaml:"sqlite" mapstructure:"sqlite"`           // optional database sink
	Walk       WalkConfig `yaml:"walk" mapstructure:"walk"`
}

// WalkConfig controls file discovery.
type WalkConfig struct {
	Exclude        []string `yaml:"exclude" mapstructure:"exclude"` // glob patterns relative to the root
	SkipHidden     bool     `yaml:"skip_hidden" mapstructure:"skip_hidden"`
	SkipVendorDirs bool     `yaml:"skip_vendor_dirs" mapstructure:"skip_vendor_dirs"`
	UseGitignore   bool     `yaml:"use_gitignore" mapstructure:"use_gitignore"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Suffix:  lang.Python.DefaultSuffix(),
		Workers: 0,
		Format:  "json",
		Walk: WalkConfig{
			Exclude: []string{},
		},
	}
}

// Validate reports the first invalid setting.
func Validate(cfg *Config) error {
	if cfg.Suffix == "" {
		return errors.New("suffix must not be empty")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if !slices.Contains(Formats, cfg.Format) {
		return fmt.Errorf("unsupported format %q (want one of %v)", cfg.Format, Formats)
	}
	return nil
}

// AnalyzerOptions maps the configuration onto analyzer options.
func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		Walk: discover.Options{
			Suffix:         c.Suffix,
			Exclude:        c.Walk.Exclude,
			SkipHidden:     c.Walk.SkipHidden,
			SkipVendorDirs: c.Walk.SkipVendorDirs,
			UseGitignore:   c.Walk.UseGitignore,
		},
		Workers:    c.Workers,
		StrictRead: c.StrictRead,
	}
}
