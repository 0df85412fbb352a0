// Package app wires configuration into the running service: stores, caches,
// brokers, providers, the session service and the HTTP router. It is shared
// by the API server, the CLI serve command and the worker.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/postgres"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/redis"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/sqlite"
	kafkainfra "github.com/turtacn/IPFiling-Assistant/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/rendering"
	minioinfra "github.com/turtacn/IPFiling-Assistant/internal/infrastructure/storage/minio"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/suggestion/anthropic"
	httpserver "github.com/turtacn/IPFiling-Assistant/internal/interfaces/http"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/handlers"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// limiterIdleTTL drops per-caller task buckets nobody used for this long.
const limiterIdleTTL = 10 * time.Minute

// Runtime is the assembled service. Optional components are nil when
// disabled in configuration.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Service   *session.Service
	Router    *gin.Engine
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Checkers  []handlers.HealthChecker

	pg       *postgres.Connection
	sqlite   *sqlite.Store
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	minio    *minioinfra.MinIOClient
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.OutputPaths,
	})
}

// NewMetrics builds the collector and the application metrics. Both are nil
// when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig, logger logging.Logger) (prometheus.MetricsCollector, *prometheus.AppMetrics, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfigFrom(cfg), logger)
	if err != nil {
		return nil, nil, err
	}
	return collector, prometheus.NewAppMetrics(collector), nil
}

// Build connects every configured backend and assembles the service and
// router. On error, everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	if err := rt.init(ctx); err != nil {
		rt.closeBackends()
		return nil, err
	}
	logger.Info("runtime initialized",
		logging.String("database", cfg.Database.Driver),
		logging.Bool("redis", rt.redis != nil),
		logging.Bool("kafka", rt.producer != nil),
		logging.Bool("minio", rt.minio != nil),
		logging.String("suggestion", cfg.Suggestion.Provider),
		logging.String("renderer", cfg.Renderer.Format),
	)
	return rt, nil
}

func (rt *Runtime) init(ctx context.Context) error {
	cfg, logger := rt.Config, rt.Logger

	var err error
	if rt.Collector, rt.Metrics, err = NewMetrics(cfg.Metrics, logger); err != nil {
		return err
	}

	store, err := rt.openStore(ctx)
	if err != nil {
		return err
	}

	svcCfg := session.ServiceConfig{
		Store:           store,
		Logger:          logger,
		UploadPolicy:    cfg.Filing.UploadPolicy(),
		IntentToUse:     cfg.Filing.ValidatorPolicy(),
		Strict:          cfg.Server.Mode == "debug",
		SuggestionCount: cfg.Suggestion.Count,
	}
	if rt.Metrics != nil {
		svcCfg.Metrics = rt.Metrics
	}

	if cfg.Redis.Addr != "" {
		rc, err := redisinfra.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		rt.redis = rc
		svcCfg.Store = redisinfra.NewCachedApplicationStore(store, rc, cfg.Redis.CacheTTL, logger)
		svcCfg.Snapshots = redisinfra.NewSnapshotStore(rc, cfg.Redis.SessionTTL)
		var opts []redisinfra.LockOption
		if cfg.Redis.LockTTL > 0 {
			opts = append(opts, redisinfra.WithLockTTL(cfg.Redis.LockTTL))
		}
		svcCfg.Locker = redisinfra.NewLocker(rc, logger, opts...)
		rt.Checkers = append(rt.Checkers, handlers.CheckerFunc("redis", rc.Ping))
	}

	if cfg.Kafka.Enabled {
		producer, err := kafkainfra.NewProducer(kafkainfra.ProducerConfigFrom(cfg.Kafka), logger)
		if err != nil {
			return err
		}
		rt.producer = producer
		svcCfg.Publisher = kafkainfra.NewEventPublisher(producer, kafkainfra.NewTopics(cfg.Kafka.TopicPrefix))
	}

	if cfg.MinIO.Enabled {
		mc, err := minioinfra.NewMinIOClient(cfg.MinIO, logger)
		if err != nil {
			return err
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			return err
		}
		rt.minio = mc
		svcCfg.Blobs = minioinfra.NewBlobStore(mc, logger)
		rt.Checkers = append(rt.Checkers, handlers.CheckerFunc("minio", func(ctx context.Context) error {
			status, err := mc.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return errors.New(errors.CodeStorageError, status.Error)
			}
			return nil
		}))
	}

	if cfg.Suggestion.Provider == config.SuggestionAnthropic {
		p, err := anthropic.New(cfg.Suggestion, logger)
		if err != nil {
			return err
		}
		svcCfg.Suggester = p
	}

	renderer, err := rendering.New(cfg.Renderer, logger)
	if err != nil {
		return err
	}
	svcCfg.Renderer = renderer

	if rt.Service, err = session.NewService(svcCfg); err != nil {
		return err
	}

	auth, err := rt.authMiddleware()
	if err != nil {
		return err
	}
	rt.Router = rt.newRouter(auth)
	return nil
}

// openStore opens the configured application store and registers its
// health check.
func (rt *Runtime) openStore(ctx context.Context) (filing.ApplicationStore, error) {
	cfg, logger := rt.Config, rt.Logger
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		rt.sqlite = s
		rt.Checkers = append(rt.Checkers, handlers.CheckerFunc("database", s.HealthCheck))
		return s, nil
	default:
		conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		rt.pg = conn
		if cfg.Database.AutoMigrate && cfg.Database.MigrationPath != "" {
			if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
				return nil, err
			}
		}
		rt.Checkers = append(rt.Checkers, handlers.CheckerFunc("database", conn.HealthCheck))
		return repositories.NewPostgresApplicationRepo(conn, logger), nil
	}
}

func (rt *Runtime) authMiddleware() (gin.HandlerFunc, error) {
	if !rt.Config.Auth.Enabled {
		rt.Logger.Warn("token authentication disabled; trusting the " + middleware.HeaderOwnerID + " header")
		return middleware.HeaderOwner(rt.Logger), nil
	}
	v, err := keycloak.NewVerifier(rt.Config.Auth, rt.Logger)
	if err != nil {
		return nil, err
	}
	return middleware.Authenticate(v, rt.Logger), nil
}

func (rt *Runtime) newRouter(auth gin.HandlerFunc) *gin.Engine {
	cfg, logger := rt.Config, rt.Logger
	gin.SetMode(cfg.Server.Mode)

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Server.SlowRequest > 0 {
		logCfg.SlowThreshold = cfg.Server.SlowRequest
	}
	if cfg.Metrics.Path != "" {
		logCfg.SkipPaths = append(logCfg.SkipPaths, cfg.Metrics.Path)
	}

	rc := httpserver.RouterConfig{
		SessionHandler:     handlers.NewSessionHandler(rt.Service, cfg.Auth.AdminRole, logger),
		ApplicationHandler: handlers.NewApplicationHandler(rt.Service, cfg.Auth.AdminRole, logger),
		HealthHandler:      handlers.NewHealthHandler(config.Version, rt.Checkers...),
		Auth:               auth,
		Logging:            logCfg,
		MaxBodySize:        cfg.Server.MaxBodySize,
		Logger:             logger,
		MetricsPath:        cfg.Metrics.Path,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)
		rc.CORS = &cors
	}
	if cfg.Server.TaskRate > 0 {
		rc.TaskLimiter = middleware.NewTokenBucketLimiter(cfg.Server.TaskRate, cfg.Server.TaskBurst, limiterIdleTTL)
	}
	if rt.Collector != nil {
		rc.MetricsCollector = rt.Collector
		rc.HTTPMetrics = rt.Metrics
	}
	return httpserver.NewRouter(rc)
}

// Handler returns the HTTP handler of the API.
func (rt *Runtime) Handler() http.Handler { return rt.Router }

// WatchConfig reloads the log level and filing policy whenever path changes.
func (rt *Runtime) WatchConfig(path string) error {
	return config.Watch(path, func(next *config.Config) {
		rt.Service.UpdatePolicy(next.Filing.UploadPolicy(), next.Filing.ValidatorPolicy())
		if !logging.SetLevel(rt.Logger, next.Log.Level) {
			rt.Logger.Debug("logger does not support level changes")
		}
		rt.Logger.Info("configuration reloaded", logging.String("path", path))
	}, func(err error) {
		rt.Logger.Warn("configuration reload rejected", logging.Err(err))
	})
}

// Close waits for background session tasks and then closes every backend.
func (rt *Runtime) Close(ctx context.Context) error {
	var err error
	if rt.Service != nil {
		if err = rt.Service.Shutdown(ctx); err != nil {
			rt.Logger.Warn("session tasks still running at shutdown", logging.Err(err))
		}
	}
	rt.closeBackends()
	return err
}

func (rt *Runtime) closeBackends() {
	if rt.producer != nil {
		if err := rt.producer.Close(); err != nil {
			rt.Logger.Warn("failed to close kafka producer", logging.Err(err))
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.Logger.Warn("failed to close redis client", logging.Err(err))
		}
	}
	if rt.sqlite != nil {
		if err := rt.sqlite.Close(); err != nil {
			rt.Logger.Warn("failed to close sqlite store", logging.Err(err))
		}
	}
	if rt.pg != nil {
		if err := rt.pg.Close(); err != nil {
			rt.Logger.Warn("failed to close postgres connection", logging.Err(err))
		}
	}
}

//Personal.AI order the ending
