// Package swmanifest injects a precache manifest of emitted build files into
// a service worker source.
package swmanifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/dkoosis/frontkit/pkg/hashname"
)

// InjectionPoint is the expression replaced by the manifest.
const InjectionPoint = "self.__WB_MANIFEST"

// ErrNoInjectionPoint is returned when the service worker source does not
// reference InjectionPoint.
var ErrNoInjectionPoint = errors.New("service worker has no " + InjectionPoint + " injection point")

// Entry is one precached URL. Revision is nil when the URL already carries a
// content hash.
type Entry struct {
	URL      string  `json:"url"`
	Revision *string `json:"revision"`
}

// Options configure Inject.
type Options struct {
	// Src is the service worker source file.
	Src string
	// Dest is the output file name, relative to OutDir.
	Dest string
	// OutDir is the build output directory that is listed.
	OutDir string
	// Exclude holds regular expressions over relative paths.
	Exclude []string
	// URLPrefix is prepended to every manifest URL.
	URLPrefix string
	// Bundle resolves the service worker's imports with esbuild first.
	Bundle bool
	Minify bool
}

// Result describes the written service worker.
type Result struct {
	Path    string
	Entries []Entry
}

// Inject lists the files in OutDir, replaces the injection point in Src with
// the manifest and writes the result to Dest.
func Inject(opts Options) (*Result, error) {
	excludes, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	source, err := load(opts)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(source, []byte(InjectionPoint)) {
		return nil, fmt.Errorf("%s: %w", opts.Src, ErrNoInjectionPoint)
	}

	entries, err := Manifest(opts.OutDir, opts.Dest, opts.URLPrefix, excludes)
	if err != nil {
		return nil, err
	}

	manifest, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	out := bytes.Replace(source, []byte(InjectionPoint), manifest, 1)

	dest := filepath.Join(opts.OutDir, filepath.FromSlash(opts.Dest))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return nil, fmt.Errorf("write service worker: %w", err)
	}

	return &Result{Path: dest, Entries: entries}, nil
}

// Manifest lists every file under outDir except dest, source maps,
// asset-manifest.json, compressed siblings and excluded paths.
func Manifest(outDir, dest, urlPrefix string, exclude []*regexp.Regexp) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == dest || skip(rel, exclude) {
			return nil
		}

		entry := Entry{URL: urlPrefix + rel}
		if !hashname.LooksHashed(rel) {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rev := hashname.ContentHash(data, hashname.DefaultHashLength)
			entry.Revision = &rev
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", outDir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return entries, nil
}

func skip(rel string, exclude []*regexp.Regexp) bool {
	base := filepath.Base(rel)
	if base == "asset-manifest.json" {
		return true
	}
	for _, ext := range []string{".map", ".gz", ".br"} {
		if strings.HasSuffix(rel, ext) {
			return true
		}
	}
	for _, re := range exclude {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclude %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func load(opts Options) ([]byte, error) {
	if !opts.Bundle {
		data, err := os.ReadFile(opts.Src)
		if err != nil {
			return nil, fmt.Errorf("read service worker: %w", err)
		}
		return data, nil
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{opts.Src},
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0].Text
		if loc := result.Errors[0].Location; loc != nil {
			msg = fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg)
		}
		return nil, fmt.Errorf("bundle service worker: %s", msg)
	}
	if len(result.OutputFiles) == 0 {
		return nil, errors.New("bundle service worker: no output")
	}
	return result.OutputFiles[0].Contents, nil
}
