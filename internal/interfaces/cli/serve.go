package cli

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/IPFiling-Assistant/internal/app"
)

// NewServeCmd runs the API server in the foreground.
func NewServeCmd() *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long:  "Run the filing assistant API server until interrupted. With --watch the\nconfig file is reloaded on change (upload policy and log level).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if port < 0 || port > 65535 {
				return fmt.Errorf("port must be between 0 and 65535, got %d", port)
			}

			logger, err := app.NewLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("logger initialization failed: %w", err)
			}
			defer logger.Sync()

			opts := app.ServeOptions{}
			if watch {
				opts.ConfigPath = cliCtx.ConfigPath
			}
			if port > 0 {
				ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
				if err != nil {
					return fmt.Errorf("listen :%d: %w", port, err)
				}
				opts.Listener = ln
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, cfg, logger, opts)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the config file on change")

	return cmd
}

//Personal.AI order the ending
