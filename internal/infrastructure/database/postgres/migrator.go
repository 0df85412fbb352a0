package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Migrator
// ─────────────────────────────────────────────────────────────────────────────

// MigrationState is the schema version recorded by golang-migrate.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator drives the application store schema from the CLI. The server
// applies migrations through Connection.RunMigrations instead.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// SourceURL turns a plain directory into a file:// source URL and leaves
// URLs with a scheme untouched.
func SourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// NewMigrator opens a migrate instance for dbURL and the migrations at path.
func NewMigrator(dbURL, path string, log logging.Logger) (*Migrator, error) {
	m, err := migrate.New(SourceURL(path), dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m, logger: log}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	g.logState("migrations applied")
	return nil
}

// Down rolls back steps migrations.
func (g *Migrator) Down(steps int) error {
	if err := ValidateSteps(steps); err != nil {
		return err
	}
	if err := g.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("failed to rollback %d step(s): %w", steps, err)
	}
	g.logState("migrations rolled back")
	return nil
}

// Status returns the applied version; zero when nothing was applied.
func (g *Migrator) Status() (MigrationState, error) {
	version, dirty, err := g.m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationState{}, nil
		}
		return MigrationState{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationState{Version: version, Dirty: dirty}, nil
}

// Force records version without running migrations, clearing a dirty state.
// Use -1 for "no version".
func (g *Migrator) Force(version int) error {
	if err := g.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	g.logger.Warn("migration version forced", logging.Int("version", version))
	return nil
}

// Reset rolls back every migration and re-applies them. It drops all
// application data.
func (g *Migrator) Reset() error {
	if err := g.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back all migrations: %w", err)
	}
	return g.Up()
}

// Close releases the source and database handles.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (g *Migrator) logState(msg string) {
	state, err := g.Status()
	if err != nil {
		g.logger.Warn("Failed to get migration version", logging.Err(err))
		return
	}
	g.logger.Info(msg, logging.Int64("version", int64(state.Version)), logging.Bool("dirty", state.Dirty))
}

// ValidateSteps rejects non-positive rollback step counts.
func ValidateSteps(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}
	return nil
}

//Personal.AI order the ending
