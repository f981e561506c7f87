// Package analyze writes bundle composition reports from an esbuild metafile.
package analyze

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/dkoosis/frontkit/pkg/chunks"
)

// Options name the report files, relative to the output directory.
type Options struct {
	ReportFile string
	StatsFile  string
}

// Stats is the machine-readable bundle composition.
type Stats struct {
	TotalBytes int64         `json:"totalBytes"`
	Outputs    []OutputStats `json:"outputs"`
}

// OutputStats describes one emitted file.
type OutputStats struct {
	Path       string       `json:"path"`
	Bytes      int64        `json:"bytes"`
	EntryPoint string       `json:"entryPoint,omitempty"`
	Inputs     []InputStats `json:"inputs"`
}

// InputStats is an input's contribution to an output.
type InputStats struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Build computes Stats from a parsed metafile. Outputs and inputs are
// ordered by size, largest first.
func Build(meta *chunks.Metafile) Stats {
	var s Stats
	for path, o := range meta.Outputs {
		out := OutputStats{Path: path, Bytes: o.Bytes, EntryPoint: o.EntryPoint}
		for in, contrib := range o.Inputs {
			out.Inputs = append(out.Inputs, InputStats{Path: in, Bytes: contrib.BytesInOutput})
		}
		sort.Slice(out.Inputs, func(i, j int) bool {
			if out.Inputs[i].Bytes != out.Inputs[j].Bytes {
				return out.Inputs[i].Bytes > out.Inputs[j].Bytes
			}
			return out.Inputs[i].Path < out.Inputs[j].Path
		})
		s.Outputs = append(s.Outputs, out)
		s.TotalBytes += o.Bytes
	}
	sort.Slice(s.Outputs, func(i, j int) bool {
		if s.Outputs[i].Bytes != s.Outputs[j].Bytes {
			return s.Outputs[i].Bytes > s.Outputs[j].Bytes
		}
		return s.Outputs[i].Path < s.Outputs[j].Path
	})
	return s
}

// Write writes the text report and the JSON stats into outDir. metafile is
// the raw metafile JSON produced by esbuild.
func Write(outDir, metafile string, opts Options) error {
	meta, err := chunks.ParseMetafile([]byte(metafile))
	if err != nil {
		return err
	}

	if opts.ReportFile != "" {
		report := api.AnalyzeMetafile(metafile, api.AnalyzeMetafileOptions{Verbose: true})
		if err := os.WriteFile(filepath.Join(outDir, opts.ReportFile), []byte(report), 0o644); err != nil {
			return fmt.Errorf("write bundle report: %w", err)
		}
	}

	if opts.StatsFile != "" {
		data, err := json.MarshalIndent(Build(meta), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(outDir, opts.StatsFile), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write bundle stats: %w", err)
		}
	}
	return nil
}
