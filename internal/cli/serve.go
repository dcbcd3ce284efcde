package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacleaner/internal/web"
)

func newServeCommand(app *App) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and run report pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *app.Config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			NewUI(cmd.OutOrStdout()).Info("Listening on http://%s", cfg.Server.Addr())
			return web.NewServer(app.Service, &cfg).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "interface to bind (default $SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default $SERVER_PORT)")
	return cmd
}
