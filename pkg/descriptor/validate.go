package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dkoosis/frontkit/pkg/hashname"
)

// ErrPathEscapesRoot is returned for descriptor paths outside the project root.
var ErrPathEscapesRoot = errors.New("path escapes project root")

// Validate checks the descriptor for consistency. All problems are returned
// joined.
func (d Descriptor) Validate() error {
	var errs []error

	if d.Mode != Production && d.Mode != Development {
		errs = append(errs, fmt.Errorf("mode %q: want %q or %q", d.Mode, Production, Development))
	}

	for _, p := range []struct{ field, value string }{
		{"entry", d.Entry},
		{"output.path", d.Output.Path},
		{"devServer.static", d.DevServer.StaticDir},
	} {
		if err := checkLocal(p.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.field, err))
		}
	}

	for _, t := range []struct{ field, value string }{
		{"output.filename", d.Output.Filename},
		{"output.chunkFilename", d.Output.ChunkFilename},
		{"output.assetFilename", d.Output.AssetFilename},
	} {
		if err := hashname.RequireContentHash(t.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.field, err))
		}
	}

	for i, r := range d.Rules {
		if _, err := regexp.Compile(r.Test); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d].test: %w", i, err))
		}
		if r.Exclude != "" {
			if _, err := regexp.Compile(r.Exclude); err != nil {
				errs = append(errs, fmt.Errorf("rules[%d].exclude: %w", i, err))
			}
		}
		if len(r.Use) == 0 && r.Type == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: no loaders and no type", i))
		}
	}

	policy := d.Optimization.SplitChunks
	policy.Groups = append(policy.Groups[:0:0], policy.Groups...)
	if err := policy.Compile(); err != nil {
		errs = append(errs, fmt.Errorf("optimization.splitChunks: %w", err))
	}

	for _, p := range d.Plugins {
		if err := validatePlugin(p); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.PluginName(), err))
		}
	}

	if port := d.DevServer.Port; port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("devServer.port %d out of range", port))
	}

	switch d.Performance.Hints {
	case HintsOff, HintsWarning, HintsError:
	default:
		errs = append(errs, fmt.Errorf("performance.hints %q unknown", d.Performance.Hints))
	}

	return errors.Join(errs...)
}

func validatePlugin(p Plugin) error {
	switch p := p.(type) {
	case HTMLPlugin:
		return checkLocal(p.Template)
	case CopyPlugin:
		for _, pat := range p.Patterns {
			if err := checkLocal(pat.From); err != nil {
				return err
			}
			if err := checkLocal(pat.To); err != nil {
				return err
			}
		}
	case CompressionPlugin:
		if p.Algorithm != "gzip" && p.Algorithm != "brotli" {
			return fmt.Errorf("algorithm %q unsupported", p.Algorithm)
		}
		if _, err := regexp.Compile(p.Test); err != nil {
			return err
		}
		if p.MinRatio <= 0 || p.MinRatio > 1 {
			return fmt.Errorf("minRatio %v out of range", p.MinRatio)
		}
	case ManifestPlugin:
		if err := checkLocal(p.SwSrc); err != nil {
			return err
		}
		if err := checkLocal(p.SwDest); err != nil {
			return err
		}
		for _, ex := range p.Exclude {
			if _, err := regexp.Compile(ex); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLocal(rel string) error {
	if rel == "" {
		return errors.New("empty path")
	}
	clean := filepath.FromSlash(strings.TrimPrefix(rel, "./"))
	if clean == "." {
		return nil
	}
	if !filepath.IsLocal(clean) {
		return fmt.Errorf("%q: %w", rel, ErrPathEscapesRoot)
	}
	return nil
}

// WriteJSON writes the descriptor as indented JSON.
func (d Descriptor) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteYAML writes the descriptor as YAML.
func (d Descriptor) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
