// Package config loads frontkit settings from defaults, a project file,
// environment variables and command-line flags.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/dkoosis/frontkit/pkg/budget"
	"github.com/dkoosis/frontkit/pkg/descriptor"
)

// Defaults.
const (
	DefaultPolicy = ".eslintrc.yaml"
	DefaultOutput = "text"
	EnvPrefix     = "FRONTKIT_"
)

// FileNames are the project config files looked up in the root, in order.
var FileNames = []string{"frontkit.yaml", "frontkit.yml"}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config is the resolved frontkit configuration.
type Config struct {
	Root    string `koanf:"root"`
	Policy  string `koanf:"policy"`
	Mode    string `koanf:"mode"`
	Analyze bool   `koanf:"analyze"`
	Port    int    `koanf:"port"`
	Verbose bool   `koanf:"verbose"`
	Format  string `koanf:"format"`

	Entry     string `koanf:"entry"`
	SrcDir    string `koanf:"src_dir"`
	OutputDir string `koanf:"output_dir"`
	PublicDir string `koanf:"public_dir"`

	MaxAssetSize      string `koanf:"max_asset_size"`
	MaxEntrypointSize string `koanf:"max_entrypoint_size"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Load resolves the configuration. Precedence, highest first: changed flags,
// environment, config file, defaults. cfgFile may be empty, in which case
// FileNames are looked up in the root.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"root":    ".",
		"policy":  DefaultPolicy,
		"mode":    string(descriptor.Development),
		"analyze": false,
		"port":    descriptor.DefaultPort,
		"verbose": false,
		"format":  DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	root := "."
	if flags != nil && flags.Changed("root") {
		root, _ = flags.GetString("root")
	}

	used := cfgFile
	if used == "" {
		for _, name := range FileNames {
			candidate := filepath.Join(root, name)
			if _, err := os.Stat(candidate); err == nil {
				used = candidate
				break
			}
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// FRONTKIT_OUTPUT_DIR -> output_dir. The plain NODE_ENV, PORT and
	// ANALYZE variables are honoured as well.
	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key, value string) (string, any) {
	if rest, ok := strings.CutPrefix(key, EnvPrefix); ok {
		return strings.ToLower(rest), value
	}
	switch key {
	case "NODE_ENV":
		if value == string(descriptor.Production) || value == string(descriptor.Development) {
			return "mode", value
		}
	case "PORT":
		return "port", value
	case "ANALYZE":
		return "analyze", value == "true"
	}
	return "", nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Mode != string(descriptor.Production) && c.Mode != string(descriptor.Development) {
		errs = append(errs, fmt.Errorf("mode %q: want production or development", c.Mode))
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("format %q: want text, json or yaml", c.Format))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	return errors.Join(errs...)
}

// BuildOptions converts the configuration into descriptor selection options.
func (c *Config) BuildOptions() descriptor.Options {
	return descriptor.Options{
		Production: c.Mode == string(descriptor.Production),
		Analyze:    c.Analyze,
		Port:       c.Port,
		Layout: descriptor.Layout{
			Entry:     c.Entry,
			SrcDir:    c.SrcDir,
			OutputDir: c.OutputDir,
			PublicDir: c.PublicDir,
		},
	}
}

// Descriptor selects the build descriptor and applies budget overrides.
func (c *Config) Descriptor() (descriptor.Descriptor, error) {
	d := descriptor.Select(c.BuildOptions())
	if c.MaxAssetSize != "" {
		n, err := budget.ParseSize(c.MaxAssetSize)
		if err != nil {
			return d, fmt.Errorf("max_asset_size: %w", err)
		}
		d.Performance.MaxAssetSize = n
	}
	if c.MaxEntrypointSize != "" {
		n, err := budget.ParseSize(c.MaxEntrypointSize)
		if err != nil {
			return d, fmt.Errorf("max_entrypoint_size: %w", err)
		}
		d.Performance.MaxEntrypointSize = n
	}
	return d, nil
}

// PolicyPath returns the lint policy file resolved against the root.
func (c *Config) PolicyPath() string {
	if filepath.IsAbs(c.Policy) {
		return c.Policy
	}
	return filepath.Join(c.Root, c.Policy)
}

// SourceURI names the file findings about the build configuration point at.
func (c *Config) SourceURI() string {
	return cmp.Or(c.File, filepath.Join(c.Root, FileNames[0]))
}
