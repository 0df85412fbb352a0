package config

import (
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SuggestionNone      = "none"
	SuggestionAnthropic = "anthropic"
)

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "debug"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultSlowRequest           = 2 * time.Second
	DefaultTaskRate              = 0.5
	DefaultTaskBurst             = 5

	DefaultDBDriver        = DriverPostgres
	DefaultDBHost          = "localhost"
	DefaultDBPort          = 5432
	DefaultDBName          = "ipfiling"
	DefaultDBMaxConns      = 25
	DefaultDBMaxIdleConns  = 5
	DefaultDBMigrationPath = "migrations"
	DefaultSQLitePath      = "ipfiling.db"

	DefaultRedisKeyPrefix  = "ipfiling:"
	DefaultRedisPoolSize   = 10
	DefaultRedisSessionTTL = 72 * time.Hour
	DefaultRedisCacheTTL   = 10 * time.Minute
	DefaultRedisLockTTL    = 10 * time.Second

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaClientID    = "ipfiling-apiserver"
	DefaultKafkaTopicPrefix = "ipfiling."

	DefaultMinIOEndpoint      = "localhost:9000"
	DefaultMinIOBucket        = "ipfiling-uploads"
	DefaultMinIOPresignExpiry = 24 * time.Hour

	DefaultSuggestionProvider  = SuggestionNone
	DefaultSuggestionMaxTokens = 1024
	DefaultSuggestionCount     = 3
	DefaultSuggestionTimeout   = 60 * time.Second

	DefaultRendererFormat  = "html"
	DefaultRendererTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "ipfiling"
	DefaultMetricsPath      = "/metrics"

	DefaultAuthKeyRefresh     = 5 * time.Minute
	DefaultAuthRequestTimeout = 10 * time.Second
	DefaultAuthAdminRole      = "ipfiling-admin"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly configured values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.SlowRequest == 0 {
		cfg.Server.SlowRequest = DefaultSlowRequest
	}
	if cfg.Server.TaskRate == 0 {
		cfg.Server.TaskRate = DefaultTaskRate
	}
	if cfg.Server.TaskBurst == 0 {
		cfg.Server.TaskBurst = DefaultTaskBurst
	}
	if cfg.Server.MaxBodySize == 0 {
		// room for a maximal upload plus multipart framing
		cfg.Server.MaxBodySize = filing.DefaultMaxUploadBytes + 1<<20
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDBDriver
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultDBMigrationPath
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = DefaultSQLitePath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	// Addr stays empty unless configured: Redis is optional.
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.SessionTTL == 0 {
		cfg.Redis.SessionTTL = DefaultRedisSessionTTL
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = DefaultRedisCacheTTL
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultRedisLockTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.TopicPrefix == "" {
		cfg.Kafka.TopicPrefix = DefaultKafkaTopicPrefix
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = DefaultMinIOPresignExpiry
	}

	// ── Suggestion ────────────────────────────────────────────────────────────
	if cfg.Suggestion.Provider == "" {
		cfg.Suggestion.Provider = DefaultSuggestionProvider
	}
	if cfg.Suggestion.MaxTokens == 0 {
		cfg.Suggestion.MaxTokens = DefaultSuggestionMaxTokens
	}
	if cfg.Suggestion.Count == 0 {
		cfg.Suggestion.Count = DefaultSuggestionCount
	}
	if cfg.Suggestion.Timeout == 0 {
		cfg.Suggestion.Timeout = DefaultSuggestionTimeout
	}

	// ── Renderer ──────────────────────────────────────────────────────────────
	if cfg.Renderer.Format == "" {
		cfg.Renderer.Format = DefaultRendererFormat
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = DefaultRendererTimeout
	}

	// ── Filing ────────────────────────────────────────────────────────────────
	if cfg.Filing.MaxUploadBytes == 0 {
		cfg.Filing.MaxUploadBytes = filing.DefaultMaxUploadBytes
	}
	if len(cfg.Filing.AllowedMediaTypes) == 0 {
		cfg.Filing.AllowedMediaTypes = filing.DefaultAllowedMediaTypes()
	}
	if cfg.Filing.IntentToUsePolicy == "" {
		cfg.Filing.IntentToUsePolicy = string(filing.IntentToUseRequiresDescription)
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Auth ──────────────────────────────────────────────────────────────────
	if cfg.Auth.KeyRefresh == 0 {
		cfg.Auth.KeyRefresh = DefaultAuthKeyRefresh
	}
	if cfg.Auth.RequestTimeout == 0 {
		cfg.Auth.RequestTimeout = DefaultAuthRequestTimeout
	}
	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = DefaultAuthAdminRole
	}
}

// NewDefaultConfig returns a Config populated purely from defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// UploadPolicy converts the filing section into the domain upload policy.
func (c FilingConfig) UploadPolicy() filing.UploadPolicy {
	return filing.UploadPolicy{
		MaxBytes:          c.MaxUploadBytes,
		AllowedMediaTypes: append([]string(nil), c.AllowedMediaTypes...),
	}
}

// ValidatorPolicy converts the filing section into the step validator policy.
func (c FilingConfig) ValidatorPolicy() filing.IntentToUsePolicy {
	return filing.IntentToUsePolicy(c.IntentToUsePolicy)
}

//Personal.AI order the ending
