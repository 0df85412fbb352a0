package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/postgres"
)

// migrator is the schema operations the migrate commands drive.
type migrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationState, error)
	Force(version int) error
	Close() error
}

// openMigrator is replaced in tests.
var openMigrator = func(cliCtx *CLIContext) (migrator, error) {
	db := cliCtx.Config.Database
	if db.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("migrations apply to the postgres store only (database.driver=%s); sqlite creates its schema on open", db.Driver)
	}
	return postgres.NewMigrator(postgres.BuildDSN(db), db.MigrationPath, cliCtx.Logger)
}

// NewMigrateCmd manages the application store schema.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the application store schema",
	}

	cmd.AddCommand(
		newMigrateUpCmd(),
		newMigrateDownCmd(),
		newMigrateStatusCmd(),
		newMigrateForceCmd(),
	)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	m, err := openMigrator(cliCtx)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printMigrationState(cmd, m)
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := postgres.ValidateSteps(steps); err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printMigrationState(cmd, m)
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m migrator) error {
				return printMigrationState(cmd, m)
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "force",
		Short: "Record a schema version without running migrations",
		Long:  "Record a schema version without running migrations. Clears a dirty state\nleft by a failed migration. Use -1 for no version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < -1 {
				return fmt.Errorf("version must be >= -1, got %d", version)
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				return printMigrationState(cmd, m)
			})
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "schema version to record")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

type migrationView struct {
	postgres.MigrationState
}

func (v migrationView) JSONValue() interface{} { return v.MigrationState }

func (v migrationView) String() string {
	if v.Version == 0 && !v.Dirty {
		return "schema version: none"
	}
	s := fmt.Sprintf("schema version: %d", v.Version)
	if v.Dirty {
		s += " (dirty)"
	}
	return s
}

func printMigrationState(cmd *cobra.Command, m migrator) error {
	state, err := m.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationView{state})
}

//Personal.AI order the ending
