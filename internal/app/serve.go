package app

import (
	"context"
	"net"

	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/IPFiling-Assistant/internal/interfaces/http"
)

// ServeOptions tunes Serve.
type ServeOptions struct {
	// ConfigPath is watched for changes when set.
	ConfigPath string
	// Listener overrides the configured port.
	Listener net.Listener
}

// Serve builds the runtime for cfg, serves the API until ctx is done and then
// shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ServeOptions) error {
	rt, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Error("runtime close failed", logging.Err(err))
		}
	}()

	if opts.ConfigPath != "" {
		if err := rt.WatchConfig(opts.ConfigPath); err != nil {
			logger.Warn("config watch disabled", logging.Err(err), logging.String("path", opts.ConfigPath))
		}
	}

	srv := httpserver.NewServer(cfg.Server, rt.Handler(), logger)
	errCh := make(chan error, 1)
	go func() {
		if opts.Listener != nil {
			errCh <- srv.Serve(opts.Listener)
			return
		}
		errCh <- srv.Start()
	}()

	logger.Info("starting IP filing assistant API server",
		logging.String("version", config.Version),
		logging.String("addr", srv.Addr()),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down servers...")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
		return err
	}
	logger.Info("servers stopped")
	return <-errCh
}

//Personal.AI order the ending
