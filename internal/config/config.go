// Package config defines the configuration structures of the filing
// assistant. No I/O lives here, only plain data types and validation; see
// loader.go for reading and defaults.go for fallback values.
package config

import (
	"fmt"
	"time"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SlowRequest     time.Duration `mapstructure:"slow_request"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// TaskRate and TaskBurst limit suggestion and document requests per owner.
	TaskRate  float64 `mapstructure:"task_rate"`
	TaskBurst int     `mapstructure:"task_burst"`
}

// DatabaseConfig selects and configures the application store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "postgres" | "sqlite"
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis; sessions then live in process memory only.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig holds the event producer parameters.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Compression  string        `mapstructure:"compression"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MinIOConfig holds blob store parameters for uploaded specimens and
// rendered documents.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// SuggestionConfig configures the generative text suggestion provider.
type SuggestionConfig struct {
	Provider  string        `mapstructure:"provider"` // "none" | "anthropic"
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Count     int           `mapstructure:"count"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RendererConfig configures the document renderer.
type RendererConfig struct {
	Format     string        `mapstructure:"format"` // "html" | "pdf"
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FilingConfig holds the filing-domain policy knobs. These are safe to
// hot-reload.
type FilingConfig struct {
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes"`
	AllowedMediaTypes []string `mapstructure:"allowed_media_types"`
	IntentToUsePolicy string   `mapstructure:"intent_to_use_policy"` // "intended_use" | "waived" | "strict"
}

// LogConfig holds logger parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// AuthConfig configures bearer-token authentication. With Enabled false the
// owner is taken from the X-Owner-ID header, which suits local development
// only.
type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Realm          string        `mapstructure:"realm"`
	ClientID       string        `mapstructure:"client_id"`
	HMACSecret     string        `mapstructure:"hmac_secret"`
	KeyRefresh     time.Duration `mapstructure:"key_refresh"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AdminRole      string        `mapstructure:"admin_role"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Suggestion SuggestionConfig `mapstructure:"suggestion"`
	Renderer   RendererConfig   `mapstructure:"renderer"`
	Filing     FilingConfig     `mapstructure:"filing"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("config: database.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: database.driver %q is invalid; expected postgres|sqlite", c.Database.Driver)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when minio is enabled")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when minio is enabled")
		}
	}

	switch c.Suggestion.Provider {
	case SuggestionNone:
	case SuggestionAnthropic:
		if c.Suggestion.APIKey == "" {
			return fmt.Errorf("config: suggestion.api_key is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("config: suggestion.provider %q is invalid; expected none|anthropic", c.Suggestion.Provider)
	}

	switch c.Renderer.Format {
	case "html", "pdf":
	default:
		return fmt.Errorf("config: renderer.format %q is invalid; expected html|pdf", c.Renderer.Format)
	}

	if c.Filing.MaxUploadBytes < 1 {
		return fmt.Errorf("config: filing.max_upload_bytes must be >= 1, got %d", c.Filing.MaxUploadBytes)
	}
	if len(c.Filing.AllowedMediaTypes) == 0 {
		return fmt.Errorf("config: filing.allowed_media_types must not be empty")
	}
	switch c.Filing.IntentToUsePolicy {
	case "intended_use", "waived", "strict":
	default:
		return fmt.Errorf("config: filing.intent_to_use_policy %q is invalid; expected intended_use|waived|strict", c.Filing.IntentToUsePolicy)
	}

	if c.Auth.Enabled && c.Auth.HMACSecret == "" {
		if c.Auth.BaseURL == "" || c.Auth.Realm == "" || c.Auth.ClientID == "" {
			return fmt.Errorf("config: auth requires base_url, realm and client_id, or hmac_secret")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

//Personal.AI order the ending
