// Audit worker entry point. Consumes the session and application event
// topics and records them in the audit trail.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/IPFiling-Assistant/internal/app"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	group := flag.String("group", app.DefaultWorkerGroup, "Kafka consumer group")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz, /stats and metrics")
	window := flag.Int("dedupe-window", 0, "number of recent event IDs remembered for duplicate detection")
	ensure := flag.Bool("ensure-topics", false, "create the event and dead-letter topics before consuming")
	replication := flag.Int("replication", 1, "replication factor for topics created by --ensure-topics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := app.BuildWorker(ctx, cfg, logger, app.WorkerOptions{
		Group:        *group,
		DedupeWindow: *window,
		EnsureTopics: *ensure,
		Replication:  *replication,
	})
	if err != nil {
		logger.Error("failed to initialize worker", logging.Err(err))
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *healthPort))
	if err != nil {
		logger.Error("failed to listen for health checks", logging.Err(err))
		os.Exit(1)
	}

	logger.Info("starting IP filing audit worker",
		logging.String("version", config.Version),
		logging.String("group", *group),
		logging.Int("health_port", *healthPort),
	)
	if err := w.Run(ctx, ln); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		os.Exit(1)
	}
}

//Personal.AI order the ending
