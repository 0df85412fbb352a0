// API server entry point for the IP filing assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/IPFiling-Assistant/internal/app"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	watch := flag.Bool("watch", true, "reload the filing policy when the config file changes")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.ServeOptions{}
	if *watch {
		opts.ConfigPath = path
	}
	if err := app.Serve(ctx, cfg, logger, opts); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path when it exists and falls back to environment and
// defaults otherwise. The returned path is empty in the fallback case.
func loadConfig(path string) (*config.Config, string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: %s not found, using environment and defaults\n", path)
		cfg, err := config.LoadFromEnv()
		return cfg, "", err
	}
	cfg, err := config.LoadFromFile(path)
	return cfg, path, err
}

//Personal.AI order the ending
