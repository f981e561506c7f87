package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/internal/config"
	"github.com/dkoosis/frontkit/pkg/build"
	"github.com/dkoosis/frontkit/pkg/chunks"
)

func newChunksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Inspect the chunk partitioning policy",
	}
	cmd.AddCommand(newChunksPlanCommand())
	return cmd
}

func newChunksPlanCommand() *cobra.Command {
	var metafile string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Partition the modules of a build metafile into chunks",
		Example: `  # Plan the last production build
  frontkit chunks plan --mode production

  # Plan an arbitrary esbuild metafile
  frontkit chunks plan --metafile dist/meta.json -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appFrom(cmd).Config
			d, err := cfg.Descriptor()
			if err != nil {
				return err
			}

			path := metafile
			if path == "" {
				path = filepath.Join(d.Path(cfg.Root, d.Output.Path), build.MetafileName)
			}
			meta, err := chunks.LoadMetafile(path)
			if err != nil {
				return err
			}

			plan, err := chunks.Partition(d.Optimization.SplitChunks, meta.Modules())
			if err != nil {
				return err
			}

			if cfg.Format != config.FormatText {
				return encode(cmd.OutOrStdout(), cfg.Format, plan)
			}
			out := cmd.OutOrStdout()
			for _, c := range plan.Chunks {
				group := c.Group
				if group == "" {
					group = "-"
				}
				fmt.Fprintf(out, "%s (group %s, %d bytes, %d modules)\n", c.Name, group, c.Size, len(c.Modules))
				for _, m := range c.Modules {
					fmt.Fprintf(out, "  %s\n", m)
				}
			}
			for _, g := range plan.Dissolved {
				fmt.Fprintf(out, "dissolved: %s\n", g)
			}
			for _, m := range plan.Unassigned {
				fmt.Fprintf(out, "unassigned: %s\n", m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metafile, "metafile", "", "esbuild metafile (default: <output>/meta.json)")
	return cmd
}
