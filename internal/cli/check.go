package cli

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/pkg/budget"
	"github.com/dkoosis/frontkit/pkg/build"
	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/descriptor"
	"github.com/dkoosis/frontkit/pkg/lintpolicy"
	"github.com/dkoosis/frontkit/pkg/publicdir"
	"github.com/dkoosis/frontkit/pkg/sarif"
	"github.com/dkoosis/frontkit/pkg/stale"
)

const ruleIDDescriptor = "descriptor-invalid"

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run every consistency check and report the findings as SARIF",
		Long: `Validates the build descriptor, looks for equal-priority chunk groups
that claim the same modules, reports lint overrides that match no file and
backup files in the public directory. When a previous build left a metafile
in the output directory, it is checked for staleness against its sources and
performance budgets are checked against it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := runChecks(appFrom(cmd))
			if err != nil {
				return err
			}
			return writeFindings(cmd, log)
		},
	}
}

func runChecks(app *App) (*sarif.Log, error) {
	cfg := app.Config
	uri := cfg.SourceURI()

	d, err := cfg.Descriptor()
	if err != nil {
		return nil, err
	}

	descRun := sarif.NewRun("descriptor")
	for _, e := range splitErrors(d.Validate()) {
		descRun.Results = append(descRun.Results, sarif.FileResult(ruleIDDescriptor, sarif.LevelError, e.Error(), uri))
	}
	descLog := sarif.NewLog()
	descLog.Runs = append(descLog.Runs, descRun)
	logs := []*sarif.Log{descLog}
	if len(descRun.Results) > 0 {
		// The remaining checks need a valid descriptor.
		return sarif.Merge(logs...), nil
	}

	outDir := d.Path(cfg.Root, d.Output.Path)
	meta, err := chunks.LoadMetafile(filepath.Join(outDir, build.MetafileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		app.Logger.Debug().Str("dir", outDir).Msg("No build metafile, skipping budgets")
		meta = nil
	case err != nil:
		return nil, err
	}

	var modules []chunks.Module
	if meta != nil {
		modules = meta.Modules()
	}
	chunkLog, err := chunks.Validate(d.Optimization.SplitChunks, modules, uri)
	if err != nil {
		return nil, err
	}
	logs = append(logs, chunkLog)

	policy, err := loadPolicy(app)
	if err != nil {
		return nil, err
	}
	lintLog, err := lintpolicy.CheckOverrides(policy, policyDir(app, policy))
	if err != nil {
		return nil, err
	}
	logs = append(logs, lintLog)

	publicLog, err := publicdir.Scan(d.Path(cfg.Root, d.DevServer.StaticDir))
	if err != nil {
		return nil, err
	}
	logs = append(logs, publicLog)

	if meta != nil {
		var extra []string
		for _, p := range d.Plugins {
			if h, ok := p.(descriptor.HTMLPlugin); ok {
				extra = append(extra, h.Template)
			}
		}
		metafile := filepath.Join(outDir, build.MetafileName)
		rule := stale.BuildRule(cfg.Root, metafile, meta, extra...)
		staleLog, err := stale.Evaluate(cfg.Root, []stale.Rule{rule})
		if err != nil {
			return nil, err
		}
		logs = append(logs, staleLog)

		level := d.Performance.Hints
		if level == descriptor.HintsOff {
			level = sarif.LevelNote
		}
		budgetLog, err := budget.NewAnalyzer(budget.Budget{
			MaxAssetSize:      d.Performance.MaxAssetSize,
			MaxEntrypointSize: d.Performance.MaxEntrypointSize,
			Level:             level,
			Ignore:            build.ReportFiles(d),
		}).Analyze(outDir, meta)
		if err != nil {
			return nil, err
		}
		logs = append(logs, budgetLog)
	}

	return sarif.Merge(logs...), nil
}

// splitErrors flattens an errors.Join tree into its leaves.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	return []error{err}
}
