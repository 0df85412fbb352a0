package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/application/audit"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	kafkainfra "github.com/turtacn/IPFiling-Assistant/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/handlers"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// DefaultWorkerGroup is the consumer group of the audit worker.
const DefaultWorkerGroup = "ipfiling-audit"

// EventConsumer is the part of the Kafka consumer the worker drives.
type EventConsumer interface {
	audit.Subscriber
	Start(ctx context.Context) error
	Close() error
}

// WorkerOptions tunes BuildWorker. With EnsureTopics the event and
// dead-letter topics are created before consuming.
type WorkerOptions struct {
	Group        string
	DedupeWindow int
	EnsureTopics bool
	Replication  int
}

// Worker consumes the session and application event streams into the audit
// trail and serves health, stats and metrics endpoints.
type Worker struct {
	Config    *config.Config
	Logger    logging.Logger
	Audit     *audit.Handler
	Router    *gin.Engine
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	consumer EventConsumer
	counters func() map[string]int64
	started  atomic.Bool
}

// BuildWorker connects the Kafka consumer described by cfg.
func BuildWorker(ctx context.Context, cfg *config.Config, logger logging.Logger, opts WorkerOptions) (*Worker, error) {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "the worker needs kafka.enabled and kafka.brokers")
	}
	if opts.Group == "" {
		opts.Group = DefaultWorkerGroup
	}
	if opts.EnsureTopics {
		if err := ensureTopics(ctx, cfg.Kafka, opts.Replication, logger); err != nil {
			return nil, err
		}
	}
	consumer, err := kafkainfra.NewConsumer(kafkainfra.ConsumerConfigFrom(cfg.Kafka, opts.Group), logger)
	if err != nil {
		return nil, errors.Collaborator(err, "kafka consumer")
	}
	w, err := NewWorker(cfg, logger, consumer, opts)
	if err != nil {
		_ = consumer.Close()
		return nil, err
	}
	w.counters = func() map[string]int64 {
		m := consumer.GetMetrics()
		return map[string]int64{
			"consumed":     m.MessagesConsumed.Load(),
			"processed":    m.MessagesProcessed.Load(),
			"failed":       m.MessagesFailed.Load(),
			"retried":      m.MessagesRetried.Load(),
			"deadLettered": m.MessagesDeadLettered.Load(),
		}
	}
	return w, nil
}

func ensureTopics(ctx context.Context, cfg config.KafkaConfig, replication int, logger logging.Logger) error {
	tm, err := kafkainfra.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tm.Close() }()
	return tm.EnsureTopics(ctx, kafkainfra.NewTopics(cfg.TopicPrefix).Defaults(replication))
}

// NewWorker wires the audit handler to consumer.
func NewWorker(cfg *config.Config, logger logging.Logger, consumer EventConsumer, opts WorkerOptions) (*Worker, error) {
	w := &Worker{Config: cfg, Logger: logger.Named("worker"), consumer: consumer}

	collector, metrics, err := NewMetrics(cfg.Metrics, logger)
	if err != nil {
		return nil, err
	}
	w.Collector, w.Metrics = collector, metrics

	var recorder audit.EventRecorder
	if metrics != nil {
		recorder = metrics
	}
	w.Audit = audit.NewHandler(logger, recorder, opts.DedupeWindow)
	w.Audit.Register(consumer, kafkainfra.NewTopics(cfg.Kafka.TopicPrefix))
	w.Router = w.newRouter()
	return w, nil
}

// WorkerStats is the body of GET /stats.
type WorkerStats struct {
	Events   audit.Stats      `json:"events"`
	Consumer map[string]int64 `json:"consumer,omitempty"`
}

func (w *Worker) newRouter() *gin.Engine {
	gin.SetMode(w.Config.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(w.Logger))

	consumer := handlers.CheckerFunc("consumer", func(context.Context) error {
		if !w.started.Load() {
			return fmt.Errorf("consumer not started")
		}
		return nil
	})
	health := handlers.NewHealthHandler(config.Version, consumer)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/stats", func(c *gin.Context) {
		out := WorkerStats{Events: w.Audit.Stats()}
		if w.counters != nil {
			out.Consumer = w.counters()
		}
		c.JSON(http.StatusOK, out)
	})
	if w.Collector != nil {
		path := w.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(w.Collector.Handler()))
	}
	return r
}

// Run consumes until ctx is done, serving the router on ln.
func (w *Worker) Run(ctx context.Context, ln net.Listener) error {
	if err := w.consumer.Start(ctx); err != nil {
		return errors.Collaborator(err, "kafka consumer")
	}
	w.started.Store(true)
	w.Logger.Info("audit worker started", logging.String("addr", ln.Addr().String()))

	srv := &http.Server{Handler: w.Router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			w.Logger.Error("health server shutdown error", logging.Err(err))
		}
		runErr = <-errCh
	}

	w.started.Store(false)
	if err := w.consumer.Close(); err != nil {
		w.Logger.Warn("failed to close kafka consumer", logging.Err(err))
	}
	stats := w.Audit.Stats()
	w.Logger.Info("audit worker stopped",
		logging.Int64("events", stats.Total),
		logging.Int64("duplicates", stats.Duplicates),
	)
	return runErr
}

//Personal.AI order the ending
