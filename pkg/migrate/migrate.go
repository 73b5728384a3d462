// Package migrate applies versioned SQL schema migrations to the SQLite and
// PostgreSQL databases used for configuration and results.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MigrationProvider defines how migrations are loaded and how the applied
// version is tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(ctx context.Context, db DB) (int, error)
	SetVersion(ctx context.Context, db DB, version int) error
	CreateMigrationTable(ctx context.Context, db DB) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards
// progress messages.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp runs all pending migrations
func (m *Migrator) MigrateUp(ctx context.Context) error {
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}
	for _, migration := range pending {
		if err := m.executeMigration(ctx, migration, true); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

// MigrateDown reverts migrations until the schema is at targetVersion
func (m *Migrator) MigrateDown(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	if targetVersion >= currentVersion {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, currentVersion)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version > migrations[j].Version
	})

	for _, migration := range migrations {
		if migration.Version > targetVersion && migration.Version <= currentVersion {
			if err := m.executeMigration(ctx, migration, false); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
			}
		}
	}
	return nil
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.provider.CreateMigrationTable(ctx, m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(ctx, m.db)
}

// GetPendingMigrations returns migrations that haven't been applied yet, in
// ascending version order
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}

	var pending []Migration
	for _, migration := range migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})
	return pending, nil
}

// executeMigration runs a single migration and records the new version in
// the same transaction
func (m *Migrator) executeMigration(ctx context.Context, migration Migration, up bool) error {
	stmt, direction, newVersion := migration.Up, "up", migration.Version
	if !up {
		stmt, direction, newVersion = migration.Down, "down", migration.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", migration.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(ctx, tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", migration.Version, "name", migration.Name, "direction", direction)
	return nil
}
