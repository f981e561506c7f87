// Package cli provides the frontkit command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/frontkit/internal/config"
	"github.com/dkoosis/frontkit/internal/logger"
	"github.com/dkoosis/frontkit/pkg/sarif"
)

// Version is set at build time.
var Version = "dev"

// ErrFindings is returned when a command reported error-level findings.
var ErrFindings = errors.New("error-level findings reported")

type appKey struct{}

// App carries the resolved configuration and logger through a command.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "frontkit",
		Short: "Build, serve and check a single-page frontend",
		Long: `frontkit selects a build descriptor for the current mode, bundles the
frontend with esbuild, serves it in development and checks the lint policy,
chunk policy and performance budgets for consistency.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), cfg.Verbose, cfg.Format == config.FormatText)
			if cfg.File != "" {
				log.Debug().Str("file", cfg.File).Msg("Using config file")
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &App{Config: cfg, Logger: log}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./frontkit.yaml)")
	flags.String("root", ".", "project root")
	flags.String("mode", "development", "build mode (production|development)")
	flags.String("policy", config.DefaultPolicy, "lint policy file, relative to the root")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.StringP("format", "f", config.FormatText, "output format (text|json|yaml)")

	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"production", "development"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatText, config.FormatJSON, config.FormatYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newDescribeCommand(),
		newBuildCommand(),
		newServeCommand(),
		newLintCommand(),
		newChunksCommand(),
		newCheckCommand(),
	)
	return rootCmd
}

// Execute runs the root command with the given arguments.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func appFrom(cmd *cobra.Command) *App {
	if a, ok := cmd.Context().Value(appKey{}).(*App); ok {
		return a
	}
	return &App{Config: &config.Config{Root: ".", Format: config.FormatText}, Logger: zerolog.Nop()}
}

// encode writes v as JSON or YAML. Text output is handled by the caller.
func encode(w io.Writer, format string, v any) error {
	if format == config.FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeFindings prints a SARIF log and returns ErrFindings when it contains
// errors.
func writeFindings(cmd *cobra.Command, log *sarif.Log) error {
	format := appFrom(cmd).Config.Format
	w := cmd.OutOrStdout()

	// SARIF is a JSON format; yaml output falls back to it.
	var err error
	if format == config.FormatText {
		err = writeFindingsText(w, log)
	} else {
		err = sarif.NewEncoder(w).Encode(log)
	}
	if err != nil {
		return err
	}

	if log.HasErrors() {
		return ErrFindings
	}
	return nil
}

func writeFindingsText(w io.Writer, log *sarif.Log) error {
	for _, run := range log.Runs {
		for _, r := range run.Results {
			uri := ""
			if len(r.Locations) > 0 {
				uri = r.Locations[0].PhysicalLocation.ArtifactLocation.URI
			}
			if _, err := fmt.Fprintf(w, "%s: %s [%s] %s\n", uri, r.Level, r.RuleID, r.Message.Text); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d error(s), %d warning(s)\n", log.Count(sarif.LevelError), log.Count(sarif.LevelWarning))
	return err
}
