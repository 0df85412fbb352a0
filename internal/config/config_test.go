package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 9090
  mode: release
  read_timeout: 5s
database:
  driver: postgres
  host: db.internal
  port: 5433
  user: filing
  password: secret
  db_name: filings
redis:
  addr: localhost:6379
  session_ttl: 1h
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
minio:
  enabled: true
  endpoint: minio:9000
  bucket: specimens
suggestion:
  provider: anthropic
  api_key: sk-test
filing:
  max_upload_bytes: 2048
  allowed_media_types: ["application/pdf"]
  intent_to_use_policy: waived
log:
  level: debug
  format: console
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultServerWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "specimens", cfg.MinIO.Bucket)
	assert.Equal(t, int64(2048), cfg.Filing.MaxUploadBytes)
	assert.Equal(t, "waived", cfg.Filing.IntentToUsePolicy)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("IPFILING_SERVER_PORT", "7070")
	t.Setenv("IPFILING_DATABASE_HOST", "override.internal")

	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestLoadFromEnv_DefaultsOnly(t *testing.T) {
	t.Setenv("IPFILING_DATABASE_USER", "filing")
	t.Setenv("IPFILING_FILING_MAX_UPLOAD_BYTES", "4096")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "filing", cfg.Database.User)
	assert.Equal(t, int64(4096), cfg.Filing.MaxUploadBytes)
	assert.Equal(t, DefaultSuggestionProvider, cfg.Suggestion.Provider)
}

func TestLoad_InvalidRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  mode: chaos\ndatabase:\n  user: u\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, int64(10<<20), cfg.Filing.MaxUploadBytes)
	assert.NotEmpty(t, cfg.Filing.AllowedMediaTypes)
	assert.Equal(t, "intended_use", cfg.Filing.IntentToUsePolicy)
	assert.Empty(t, cfg.Redis.Addr, "redis stays disabled unless configured")
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 1234}, Log: LogConfig{Level: "warn"}}
	ApplyDefaults(cfg)
	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Database.User = "filing"
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"postgres user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"sqlite path", func(c *Config) { c.Database.Driver = DriverSQLite; c.Database.SQLitePath = "" }, "sqlite_path"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"minio bucket", func(c *Config) { c.MinIO.Enabled = true; c.MinIO.Bucket = "" }, "minio.bucket"},
		{"anthropic key", func(c *Config) { c.Suggestion.Provider = SuggestionAnthropic }, "suggestion.api_key"},
		{"renderer", func(c *Config) { c.Renderer.Format = "docx" }, "renderer.format"},
		{"upload size", func(c *Config) { c.Filing.MaxUploadBytes = -1 }, "max_upload_bytes"},
		{"policy", func(c *Config) { c.Filing.IntentToUsePolicy = "maybe" }, "intent_to_use_policy"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"auth", func(c *Config) { c.Auth.Enabled = true }, "auth requires"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFilingConfig_Policies(t *testing.T) {
	fc := FilingConfig{MaxUploadBytes: 99, AllowedMediaTypes: []string{"image/png"}, IntentToUsePolicy: "strict"}
	p := fc.UploadPolicy()
	assert.Equal(t, int64(99), p.MaxBytes)
	assert.Equal(t, []string{"image/png"}, p.AllowedMediaTypes)
	assert.EqualValues(t, "strict", fc.ValidatorPolicy())
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

//Personal.AI order the ending
