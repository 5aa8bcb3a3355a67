package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"suffix":      "suffix",
	"workers":     "workers",
	"strict":      "strict_read",
	"format":      "format",
	"output":      "output",
	"sqlite":      "sqlite",
	"exclude":     "walk.exclude",
	"skip-hidden": "walk.skip_hidden",
	"skip-vendor": "walk.skip_vendor_dirs",
	"gitignore":   "walk.use_gitignore",
}

var envKeys = []string{
	"suffix",
	"workers",
	"strict_read",
	"format",
	"output",
	"sqlite",
	"walk.exclude",
	"walk.skip_hidden",
	"walk.skip_vendor_dirs",
	"walk.use_gitignore",
}

// Loader reads configuration for one analyzed root.
type Loader struct {
	rootDir    string
	configFile string
	flags      *pflag.FlagSet
}

// NewLoader creates a loader that looks for .pyoutline.yaml in rootDir.
func NewLoader(rootDir string) *Loader {
	return &Loader{rootDir: rootDir}
}

// WithConfigFile uses path instead of the root's .pyoutline.yaml. A missing
// explicit file is an error.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithFlags lets explicitly set flags override every other source.
func (l *Loader) WithFlags(fs *pflag.FlagSet) *Loader {
	l.flags = fs
	return l
}

// Load resolves the configuration with priority (highest first):
// flags, PYOUTLINE_* environment variables, config file, defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(l.rootDir)
	}

	v.SetEnvPrefix("PYOUTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if l.flags != nil {
		for name, key := range flagKeys {
			if f := l.flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// UsedFile returns the config file a fresh load of this root would read, or
// "" if there is none.
func (l *Loader) UsedFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	path := filepath.Join(l.rootDir, FileName)
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return path
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("suffix", defaults.Suffix)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("strict_read", defaults.StrictRead)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("sqlite", defaults.SQLite)

	v.SetDefault("walk.exclude", defaults.Walk.Exclude)
	v.SetDefault("walk.skip_hidden", defaults.Walk.SkipHidden)
	v.SetDefault("walk.skip_vendor_dirs", defaults.Walk.SkipVendorDirs)
	v.SetDefault("walk.use_gitignore", defaults.Walk.UseGitignore)
}
