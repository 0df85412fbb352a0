// Package postgres manages the PostgreSQL connection pool and schema
// migrations of the application store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// driverName is the database/sql driver registered by pgx/v5/stdlib.
const driverName = "pgx"

const (
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	connectTimeout         = 5 * time.Second

	// poolPressure is the in-use ratio above which HealthCheck warns.
	poolPressure = 0.8
)

// sqlOpen is swapped in tests.
var sqlOpen = sql.Open

// Connection owns the pool backing the application repository.
type Connection struct {
	db     *sql.DB
	logger logging.Logger
	once   sync.Once
}

// NewConnection opens the pool described by cfg and pings it within ctx,
// bounded by a short connect timeout.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*Connection, error) {
	db, err := sqlOpen(driverName, BuildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database connection")
	}
	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed").
			WithDetail(fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.DBName))
	}

	log.Info("Connected to PostgreSQL application store",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)
	return &Connection{db: db, logger: log}, nil
}

// NewConnectionWithDB wraps an already open pool.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	return &Connection{db: db, logger: log}
}

func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	orDefault := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	orDefaultDur := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	db.SetMaxOpenConns(orDefault(cfg.MaxConns, config.DefaultDBMaxConns))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, config.DefaultDBMaxIdleConns))
	db.SetConnMaxLifetime(orDefaultDur(cfg.ConnMaxLifetime, defaultConnMaxLifetime))
	db.SetConnMaxIdleTime(orDefaultDur(cfg.ConnMaxIdleTime, defaultConnMaxIdleTime))
}

func (c *Connection) DB() *sql.DB         { return c.db }
func (c *Connection) Stats() sql.DBStats { return c.db.Stats() }

// HealthCheck pings the pool and warns when most connections are busy.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	if s := c.db.Stats(); s.OpenConnections > 0 {
		if usage := float64(s.InUse) / float64(s.OpenConnections); usage > poolPressure {
			c.logger.Warn("High database connection pool usage",
				logging.Int("in_use", s.InUse),
				logging.Int("open", s.OpenConnections),
				logging.Float64("usage", usage),
			)
		}
	}
	return nil
}

// Close closes the pool once; later calls return nil.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		if err = c.db.Close(); err != nil {
			c.logger.Error("Failed to close PostgreSQL connection", logging.Err(err))
			return
		}
		c.logger.Info("Closed PostgreSQL connection")
	})
	return err
}

// RunMigrations applies pending migrations from path over the open pool.
// The migrate instance is not closed since that would close the pool.
func (c *Connection) RunMigrations(path string) error {
	driver, err := migratepg.WithInstance(c.db, &migratepg.Config{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance(SourceURL(path), "postgres", driver)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	g := &Migrator{m: m, logger: c.logger}
	if err := g.Up(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to migrate the application store")
	}
	return nil
}

// BuildDSN returns the postgres:// URL for cfg. The SSL mode defaults to
// disable.
func BuildDSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

//Personal.AI order the ending
