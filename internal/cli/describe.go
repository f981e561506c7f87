package cli

import (
	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/internal/config"
)

func newDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the build descriptor selected for the current mode",
		Example: `  # Development descriptor as YAML
  frontkit describe

  # Production descriptor with the bundle analyzer, as JSON
  NODE_ENV=production frontkit describe --analyze -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appFrom(cmd).Config
			d, err := cfg.Descriptor()
			if err != nil {
				return err
			}
			if cfg.Format == config.FormatJSON {
				return d.WriteJSON(cmd.OutOrStdout())
			}
			return d.WriteYAML(cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool("analyze", false, "include the bundle analyzer plugin")
	cmd.Flags().Int("port", 3000, "dev server port")
	return cmd
}
