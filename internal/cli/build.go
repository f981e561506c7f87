package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/internal/config"
	"github.com/dkoosis/frontkit/pkg/build"
	"github.com/dkoosis/frontkit/pkg/sarif"
)

// buildSummary is the machine-readable build report.
type buildSummary struct {
	OutDir     string   `json:"outDir" yaml:"outDir"`
	Outputs    []string `json:"outputs" yaml:"outputs"`
	Chunks     int      `json:"chunks" yaml:"chunks"`
	Compressed int      `json:"compressed" yaml:"compressed"`
	Precached  int      `json:"precached,omitempty" yaml:"precached,omitempty"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors     int      `json:"errors" yaml:"errors"`
	Findings   int      `json:"findings" yaml:"findings"`
}

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle the frontend and run the post-build plugins",
		Example: `  # Production build
  frontkit build --mode production

  # Production build with bundle report
  ANALYZE=true NODE_ENV=production frontkit build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			cfg := app.Config
			d, err := cfg.Descriptor()
			if err != nil {
				return err
			}

			res, err := build.Run(cmd.Context(), build.Request{
				Root:       cfg.Root,
				Descriptor: d,
				Logger:     app.Logger,
				SourceURI:  cfg.SourceURI(),
			})
			if err != nil {
				return err
			}

			if cfg.Format == config.FormatText {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Built %d files into %s\n", len(res.Outputs), res.OutDir)
				for _, f := range res.Outputs {
					fmt.Fprintf(out, "  %s\n", f)
				}
				return writeFindings(cmd, res.Findings)
			}

			summary := buildSummary{
				OutDir:     res.OutDir,
				Outputs:    res.Outputs,
				Chunks:     len(res.Plan.Chunks),
				Compressed: len(res.Compressed),
				Warnings:   res.Warnings,
				Errors:     res.Findings.Count(sarif.LevelError),
				Findings:   res.Findings.Count(sarif.LevelWarning) + res.Findings.Count(sarif.LevelError),
			}
			if res.Manifest != nil {
				summary.Precached = len(res.Manifest.Entries)
			}
			if err := encode(cmd.OutOrStdout(), cfg.Format, summary); err != nil {
				return err
			}
			if res.Findings.HasErrors() {
				return ErrFindings
			}
			return nil
		},
	}
	cmd.Flags().Bool("analyze", false, "write the bundle analyzer report")
	return cmd
}
