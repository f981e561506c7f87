package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkoosis/frontkit/pkg/devserver"
)

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development server with watch mode and live reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)
			d, err := app.Config.Descriptor()
			if err != nil {
				return err
			}

			srv, err := devserver.New(devserver.Config{
				Root:       app.Config.Root,
				Descriptor: d,
				Addr:       addr,
			}, app.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().Int("port", 3000, "port to listen on")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides --port (for example 127.0.0.1:3000)")
	return cmd
}
