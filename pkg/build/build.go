// Package build runs a build descriptor through esbuild and the post-build
// steps: page rendering, static copy, compression, service worker manifest
// injection, bundle analysis, chunk planning and performance budgets.
package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/dkoosis/frontkit/pkg/analyze"
	"github.com/dkoosis/frontkit/pkg/budget"
	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/compress"
	"github.com/dkoosis/frontkit/pkg/descriptor"
	"github.com/dkoosis/frontkit/pkg/publicdir"
	"github.com/dkoosis/frontkit/pkg/sarif"
	"github.com/dkoosis/frontkit/pkg/swmanifest"
)

// Report files written next to the build output.
const (
	MetafileName  = "meta.json"
	ChunkPlanName = "chunk-plan.json"
)

// ErrBuildFailed is returned when esbuild reports errors.
var ErrBuildFailed = errors.New("build failed")

// Request describes one build.
type Request struct {
	Root       string
	Descriptor descriptor.Descriptor
	Logger     zerolog.Logger
	// SourceURI names the descriptor source in findings.
	SourceURI string
}

// Result summarizes a finished build.
type Result struct {
	OutDir     string
	Outputs    []string
	Metafile   string
	Plan       *chunks.Plan
	Compressed []compress.File
	Manifest   *swmanifest.Result
	Findings   *sarif.Log
	Warnings   []string
}

// Run builds the project. Findings such as budget overruns are returned in
// Result.Findings; only failures to build are errors.
func Run(ctx context.Context, req Request) (*Result, error) {
	d := req.Descriptor
	log := req.Logger

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	outDir := d.Path(root, d.Output.Path)
	if outDir == root {
		return nil, fmt.Errorf("output.path %q: must not be the project root", d.Output.Path)
	}

	if d.Output.Clean {
		log.Debug().Str("dir", outDir).Msg("Cleaning output directory")
		if err := os.RemoveAll(outDir); err != nil {
			return nil, fmt.Errorf("clean output: %w", err)
		}
	}

	opts, err := Options(d, root)
	if err != nil {
		return nil, err
	}

	log.Info().Str("mode", string(d.Mode)).Str("entry", d.Entry).Msg("Building")
	result := api.Build(opts)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w:\n%s", ErrBuildFailed, FormatMessages(result.Errors))
	}

	res := &Result{OutDir: outDir, Metafile: result.Metafile}
	for _, w := range result.Warnings {
		msg := formatMessage(w)
		log.Warn().Str("warning", msg).Msg("Build warning")
		res.Warnings = append(res.Warnings, msg)
	}

	for _, f := range result.OutputFiles {
		if err := writeFile(f.Path, f.Contents); err != nil {
			return nil, err
		}
		rel := outputRel(outDir, f.Path)
		res.Outputs = append(res.Outputs, rel)
		log.Debug().Str("file", rel).Int("bytes", len(f.Contents)).Msg("Built file")
	}
	meta, err := chunks.ParseMetafile([]byte(result.Metafile))
	if err != nil {
		return nil, err
	}

	for _, p := range runOrder(d.Plugins) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug().Str("plugin", p.PluginName()).Msg("Running plugin")
		if err := runPlugin(ctx, p, root, outDir, d, meta, res, log); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.PluginName(), err)
		}
	}

	modules := meta.Modules()
	plan, err := chunks.Partition(d.Optimization.SplitChunks, modules)
	if err != nil {
		return nil, fmt.Errorf("chunk plan: %w", err)
	}
	res.Plan = plan
	if err := writeFile(filepath.Join(outDir, MetafileName), []byte(result.Metafile)); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(outDir, ChunkPlanName), plan); err != nil {
		return nil, err
	}

	findings, err := chunks.Validate(d.Optimization.SplitChunks, modules, req.SourceURI)
	if err != nil {
		return nil, err
	}
	if d.Performance.Hints != descriptor.HintsOff {
		budgetLog, err := budget.NewAnalyzer(budget.Budget{
			MaxAssetSize:      d.Performance.MaxAssetSize,
			MaxEntrypointSize: d.Performance.MaxEntrypointSize,
			Level:             d.Performance.Hints,
			Ignore:            ReportFiles(d),
		}).Analyze(outDir, meta)
		if err != nil {
			return nil, err
		}
		findings = sarif.Merge(findings, budgetLog)
	}
	res.Findings = findings

	log.Info().
		Int("outputs", len(res.Outputs)).
		Int("chunks", len(plan.Chunks)).
		Int("errors", findings.Count(sarif.LevelError)).
		Int("warnings", findings.Count(sarif.LevelWarning)).
		Msg("Build complete")
	return res, nil
}

// runOrder returns the plugins in the order they run. Compression waits
// until every service worker manifest has been injected so the generated
// worker gets a compressed sibling too.
func runOrder(plugins []descriptor.Plugin) []descriptor.Plugin {
	last := -1
	for i, p := range plugins {
		if _, ok := p.(descriptor.ManifestPlugin); ok {
			last = i
		}
	}

	out := make([]descriptor.Plugin, 0, len(plugins))
	var held []descriptor.Plugin
	for i, p := range plugins {
		if _, ok := p.(descriptor.CompressionPlugin); ok && i < last {
			held = append(held, p)
			continue
		}
		out = append(out, p)
		if i == last {
			out = append(out, held...)
		}
	}
	return out
}

func runPlugin(ctx context.Context, p descriptor.Plugin, root, outDir string, d descriptor.Descriptor,
	meta *chunks.Metafile, res *Result, log zerolog.Logger) error {
	switch p := p.(type) {
	case descriptor.HTMLPlugin:
		return renderPage(p, root, outDir, d, meta, log)

	case descriptor.CopyPlugin:
		for _, pat := range p.Patterns {
			copied, err := publicdir.Copy(d.Path(root, pat.From), filepath.Join(outDir, filepath.FromSlash(pat.To)), pat.Ignore)
			if err != nil {
				return err
			}
			for _, b := range copied.Backups {
				log.Warn().Str("file", b).Msg("Skipping backup file in public directory")
			}
			log.Debug().Int("files", len(copied.Copied)).Str("from", pat.From).Msg("Copied static files")
		}
		return nil

	case descriptor.CompressionPlugin:
		files, err := compress.Run(ctx, outDir, compress.Options{
			Algorithm: p.Algorithm,
			Test:      p.Test,
			Threshold: p.Threshold,
			MinRatio:  p.MinRatio,
		})
		if err != nil {
			return err
		}
		res.Compressed = files
		return nil

	case descriptor.ManifestPlugin:
		m, err := swmanifest.Inject(swmanifest.Options{
			Src:       d.Path(root, p.SwSrc),
			Dest:      p.SwDest,
			OutDir:    outDir,
			Exclude:   p.Exclude,
			URLPrefix: d.Output.PublicPath,
			Bundle:    true,
			Minify:    d.Optimization.Minimize,
		})
		if err != nil {
			return err
		}
		res.Manifest = m
		log.Debug().Int("entries", len(m.Entries)).Msg("Injected precache manifest")
		return nil

	case descriptor.AnalyzerPlugin:
		return analyze.Write(outDir, res.Metafile, analyze.Options{
			ReportFile: p.ReportFile,
			StatsFile:  p.StatsFile,
		})

	default:
		return fmt.Errorf("unsupported plugin %T", p)
	}
}

// renderPage writes the HTML page for the descriptor's entry point.
func renderPage(p descriptor.HTMLPlugin, root, outDir string, d descriptor.Descriptor,
	meta *chunks.Metafile, log zerolog.Logger) error {
	page, err := Page(p, root, d, meta, nil, log)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(outDir, p.Filename), []byte(page))
}

// Page renders the page template of p with the assets of the descriptor's
// entry point. inline scripts are appended to the body.
func Page(p descriptor.HTMLPlugin, root string, d descriptor.Descriptor, meta *chunks.Metafile,
	inline []string, log zerolog.Logger) (string, error) {
	template := DefaultTemplate
	data, err := os.ReadFile(d.Path(root, p.Template))
	switch {
	case err == nil:
		template = string(data)
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("template", p.Template).Msg("Page template not found, using default")
	default:
		return "", err
	}

	outDir := d.Path(root, d.Output.Path)
	assets, err := EntryAssets(meta, slashRel(root, d.Path(root, d.Entry)), slashRel(root, outDir), d.Output.PublicPath)
	if err != nil {
		return "", err
	}
	return RenderHTML(template, assets, inline...), nil
}

// FormatMessages renders esbuild messages one per line as file:line:col: text.
func FormatMessages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, formatMessage(m))
	}
	return strings.Join(lines, "\n")
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

// ReportFiles lists the files a build writes next to its assets that are
// not themselves assets.
func ReportFiles(d descriptor.Descriptor) []string {
	out := []string{MetafileName, ChunkPlanName}
	for _, p := range d.Plugins {
		if a, ok := p.(descriptor.AnalyzerPlugin); ok {
			out = append(out, a.ReportFile, a.StatsFile)
		}
	}
	return out
}

func slashRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}
