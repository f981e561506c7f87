package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/internal/config"
	"github.com/dkoosis/frontkit/pkg/lintpolicy"
)

func newLintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Inspect the lint policy",
		Long: `Inspect the lint policy read from the configured policy file
(default .eslintrc.yaml in the project root). When the file does not exist
the built-in policy is used.`,
	}
	cmd.AddCommand(newLintEffectiveCommand(), newLintCheckCommand(), newLintExportCommand())
	return cmd
}

func newLintEffectiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "effective <path>...",
		Short: "Print the rules and environments in effect for each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			p, err := loadPolicy(app)
			if err != nil {
				return err
			}

			dir := policyDir(app, p)
			resolved := make([]lintpolicy.Resolved, 0, len(args))
			for _, arg := range args {
				res := p.Effective(relTo(dir, app.Config.Root, arg))
				res.Path = filepath.ToSlash(arg)
				resolved = append(resolved, res)
			}

			if app.Config.Format == config.FormatText {
				return writeResolvedText(cmd.OutOrStdout(), resolved)
			}
			return encode(cmd.OutOrStdout(), app.Config.Format, resolved)
		},
	}
}

func newLintCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report overrides whose patterns match no file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			p, err := loadPolicy(app)
			if err != nil {
				return err
			}
			log, err := lintpolicy.CheckOverrides(p, policyDir(app, p))
			if err != nil {
				return err
			}
			return writeFindings(cmd, log)
		},
	}
}

func newLintExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the lint policy in the linter's JSON format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			p, err := loadPolicy(app)
			if err != nil {
				return err
			}
			if output == "-" {
				return p.WriteJSON(cmd.OutOrStdout())
			}

			path := output
			if !filepath.IsAbs(path) {
				path = filepath.Join(app.Config.Root, path)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := p.WriteJSON(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			app.Logger.Info().Str("file", path).Msg("Wrote lint policy")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".eslintrc.json", `output file, "-" for stdout`)
	return cmd
}

// loadPolicy reads the configured policy. A missing default policy file
// falls back to the built-in policy; a missing explicit one is an error.
func loadPolicy(app *App) (*lintpolicy.Policy, error) {
	path := app.Config.PolicyPath()
	p, err := lintpolicy.Load(path)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, fs.ErrNotExist) && app.Config.Policy == config.DefaultPolicy {
		app.Logger.Debug().Str("file", path).Msg("No lint policy file, using built-in policy")
		return lintpolicy.Default(app.Config.BuildOptions().Production), nil
	}
	return nil, err
}

// policyDir is the directory override globs are relative to: the directory
// holding the policy file, or the project root for the built-in policy.
func policyDir(app *App, p *lintpolicy.Policy) string {
	if p.Source != "" {
		return filepath.Dir(p.Source)
	}
	return app.Config.Root
}

// relTo expresses path, taken relative to root unless absolute, relative to
// dir.
func relTo(dir, root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func writeResolvedText(w io.Writer, resolved []lintpolicy.Resolved) error {
	for _, r := range resolved {
		env := lo.Keys(lo.PickBy(r.Env, func(_ string, on bool) bool { return on }))
		slices.Sort(env)
		if _, err := fmt.Fprintf(w, "%s\n  env: %s\n", r.Path, strings.Join(env, ", ")); err != nil {
			return err
		}
		if len(r.Applied) > 0 {
			fmt.Fprintf(w, "  overrides: %v\n", r.Applied)
		}

		names := lo.Keys(r.Rules)
		slices.Sort(names)
		for _, name := range names {
			setting := r.Rules[name]
			line := fmt.Sprintf("  %s: %s", name, setting.Severity)
			if len(setting.Options) > 0 {
				line += fmt.Sprintf(" %v", setting.Options)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
