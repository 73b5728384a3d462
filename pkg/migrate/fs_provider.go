package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a directory of a filesystem, typically
// an embed.FS compiled into the binary
type FSProvider struct {
	fsys           fs.FS
	dir            string
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a migration provider reading dir of fsys
func NewFSProvider(fsys fs.FS, dir, migrationTable, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations in the directory
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", p.dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFileRegex.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", e.Name(), err)
		}
		content, err := fs.ReadFile(p.fsys, path.Join(p.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(ctx context.Context, db DB) error {
	appliedType := "DATETIME"
	if p.dbDriver == "postgres" {
		appliedType = "TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable, appliedType)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(ctx context.Context, db DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current schema version
func (p *FSProvider) SetVersion(ctx context.Context, db DB, version int) error {
	var err error
	if version == 0 {
		_, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", p.migrationTable))
	} else {
		// Rolling back removes the reverted versions so MAX(version) stays correct
		if _, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > %d", p.migrationTable, version)); err != nil {
			return fmt.Errorf("failed to set version: %w", err)
		}
		var query string
		if p.dbDriver == "postgres" {
			query = fmt.Sprintf(`
				INSERT INTO %s (version, applied_at)
				VALUES ($1, CURRENT_TIMESTAMP)
				ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
			`, p.migrationTable)
		} else {
			query = fmt.Sprintf(`
				INSERT OR REPLACE INTO %s (version, applied_at)
				VALUES (?, CURRENT_TIMESTAMP)
			`, p.migrationTable)
		}
		_, err = db.ExecContext(ctx, query, version)
	}
	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
