// Package budget checks emitted build files against performance size budgets.
package budget

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/sarif"
)

const (
	ruleIDAsset      = "perf-asset-size"
	ruleIDEntrypoint = "perf-entrypoint-size"
)

// Budget holds the size limits. A zero limit disables that check.
type Budget struct {
	MaxAssetSize      int64
	MaxEntrypointSize int64
	// Level is the SARIF level of findings, "warning" when empty.
	Level string
	// Ignore lists report files, relative to the output directory, that are
	// not assets.
	Ignore []string
}

// FileMetric describes a single emitted file.
type FileMetric struct {
	Path      string
	SizeBytes int64
}

// Analyzer evaluates a budget against a build output.
type Analyzer struct {
	budget Budget
}

// NewAnalyzer creates an analyzer for the provided budget.
func NewAnalyzer(b Budget) *Analyzer {
	if b.Level == "" {
		b.Level = sarif.LevelWarning
	}
	return &Analyzer{budget: b}
}

// Analyze measures every asset under outDir and, when meta is not nil, every
// entrypoint it describes. Paths in findings are relative to outDir.
func (a *Analyzer) Analyze(outDir string, meta *chunks.Metafile) (*sarif.Log, error) {
	metrics, err := collectMetrics(outDir)
	if err != nil {
		return nil, err
	}

	run := sarif.NewRun("budget")

	if limit := a.budget.MaxAssetSize; limit > 0 {
		for _, m := range metrics {
			if slices.Contains(a.budget.Ignore, m.Path) {
				continue
			}
			if m.SizeBytes > limit {
				run.Results = append(run.Results, sarif.FileResult(ruleIDAsset, a.budget.Level,
					fmt.Sprintf("%s exceeds asset size budget: %d > %d", m.Path, m.SizeBytes, limit),
					m.Path))
			}
		}
	}

	if limit := a.budget.MaxEntrypointSize; limit > 0 && meta != nil {
		for _, e := range Entrypoints(meta) {
			if e.SizeBytes > limit {
				run.Results = append(run.Results, sarif.FileResult(ruleIDEntrypoint, a.budget.Level,
					fmt.Sprintf("entrypoint %s exceeds size budget: %d > %d", e.Path, e.SizeBytes, limit),
					e.Path))
			}
		}
	}

	log := sarif.NewLog()
	log.Runs = append(log.Runs, run)
	return log, nil
}

// Entrypoints returns the initial download size of every entry output: its
// own bytes plus every output it statically imports, transitively.
func Entrypoints(meta *chunks.Metafile) []FileMetric {
	var out []FileMetric
	for path, o := range meta.Outputs {
		if o.EntryPoint == "" || skipped(path) {
			continue
		}
		seen := map[string]bool{}
		var walk func(p string) int64
		walk = func(p string) int64 {
			if seen[p] {
				return 0
			}
			seen[p] = true
			cur, ok := meta.Outputs[p]
			if !ok {
				return 0
			}
			total := cur.Bytes
			for _, imp := range cur.Imports {
				if imp.External || imp.Kind != "import-statement" {
					continue
				}
				total += walk(imp.Path)
			}
			if cur.CSSBundle != "" {
				total += walk(cur.CSSBundle)
			}
			return total
		}
		out = append(out, FileMetric{Path: path, SizeBytes: walk(path)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectMetrics(dir string) ([]FileMetric, error) {
	var metrics []FileMetric
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || skipped(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		metrics = append(metrics, FileMetric{Path: filepath.ToSlash(rel), SizeBytes: info.Size()})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("output directory %s does not exist", dir)
		}
		return nil, err
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Path < metrics[j].Path })
	return metrics, nil
}

// skipped reports files that never count against a budget.
func skipped(path string) bool {
	for _, ext := range []string{".map", ".gz", ".br"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
