package build

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/dkoosis/frontkit/pkg/descriptor"
	"github.com/dkoosis/frontkit/pkg/hashname"
)

// loaderExtensions are the file types whose loader is derived from the
// descriptor's loader rules.
var loaderExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".css",
	".png", ".svg", ".jpg", ".jpeg", ".gif", ".woff", ".woff2",
}

// Options maps a descriptor onto esbuild build options for the project at
// root. root must be absolute. Output is kept in memory.
func Options(d descriptor.Descriptor, root string) (api.BuildOptions, error) {
	entryNames, err := esbuildNames(d.Output.Filename)
	if err != nil {
		return api.BuildOptions{}, fmt.Errorf("output.filename: %w", err)
	}
	chunkNames, err := esbuildNames(d.Output.ChunkFilename)
	if err != nil {
		return api.BuildOptions{}, fmt.Errorf("output.chunkFilename: %w", err)
	}
	assetNames, err := esbuildNames(d.Output.AssetFilename)
	if err != nil {
		return api.BuildOptions{}, fmt.Errorf("output.assetFilename: %w", err)
	}

	alias := make(map[string]string, len(d.Resolve.Alias))
	for from, to := range d.Resolve.Alias {
		alias[from] = d.Path(root, to)
	}

	opts := api.BuildOptions{
		AbsWorkingDir:     root,
		EntryPoints:       []string{d.Path(root, d.Entry)},
		Outdir:            d.Path(root, d.Output.Path),
		EntryNames:        entryNames,
		ChunkNames:        chunkNames,
		AssetNames:        assetNames,
		PublicPath:        d.Output.PublicPath,
		Bundle:            true,
		Splitting:         true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            api.ES2020,
		JSX:               api.JSXAutomatic,
		Alias:             alias,
		ResolveExtensions: resolveExtensions(d.Resolve.Extensions),
		Loader:            loaders(d),
		LogOverride:       logOverrides(d),
		MinifyWhitespace:  d.Optimization.Minimize,
		MinifyIdentifiers: d.Optimization.Minimize,
		MinifySyntax:      d.Optimization.Minimize,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(d.SourceMaps, api.SourceMapLinked, api.SourceMapNone),
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", string(d.Mode)),
		},
		Metafile: true,
		Write:    false,
		LogLevel: api.LogLevelSilent,
	}
	if d.Optimization.DropConsole {
		opts.Drop = api.DropConsole
	}
	return opts, nil
}

func esbuildNames(raw string) (string, error) {
	t, err := hashname.Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Esbuild(), nil
}

// resolveExtensions keeps the descriptor order and appends the types esbuild
// needs for stylesheets and data.
func resolveExtensions(exts []string) []string {
	out := append([]string(nil), exts...)
	for _, ext := range []string{".mjs", ".css", ".json"} {
		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}

func loaders(d descriptor.Descriptor) map[string]api.Loader {
	out := map[string]api.Loader{}
	for _, ext := range loaderExtensions {
		rule, ok := d.RuleFor("src/file" + ext)
		if !ok {
			continue
		}
		switch {
		case rule.Type == "asset/resource":
			out[ext] = api.LoaderFile
		case rule.Uses("css-loader"):
			out[ext] = api.LoaderCSS
		case rule.Uses("babel-loader"):
			out[ext] = cond(strings.HasPrefix(ext, ".ts"), api.LoaderTSX, api.LoaderJSX)
		}
	}
	return out
}

// logOverrides silences source-map comment warnings for modules that are
// handled by a source-map-loader rule.
func logOverrides(d descriptor.Descriptor) map[string]api.LogLevel {
	for _, r := range d.Rules {
		if r.Uses("source-map-loader") {
			return map[string]api.LogLevel{"unsupported-source-map-comment": api.LogLevelSilent}
		}
	}
	return nil
}

func outputRel(outDir, path string) string {
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
