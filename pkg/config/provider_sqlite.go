package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const defaultConfigName = "default"

// MigrationProvider returns the embedded configuration schema migrations
func MigrationProvider() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFiles, "migrations", "config_schema_migrations", "sqlite")
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the configuration database at dbPath, creating
// and migrating the schema as needed
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.NewMigrator(db, MigrationProvider(), log.GetSugaredLogger()).MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	analysis, err := s.GetAnalysis()
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis parameters: %w", err)
	}
	config.Analysis = *analysis

	sites, err := s.GetSites()
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	config.Sites = sites

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	return config, nil
}

// GetAnalysis returns the analysis parameters. A database without an
// analysis row yields zero values so that defaults apply.
func (s *SQLiteProvider) GetAnalysis() (*AnalysisData, error) {
	query := `
		SELECT n_seasons, n_strata_min, n_strata_max, n_bins, n_per_bin,
		       n_per_bin_hourly, p_significant, n_boot, seed, workers,
		       ustar_min, ustar_max
		FROM analysis
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var a AnalysisData
	var seed int64
	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&a.NSeasons, &a.NStrataMin, &a.NStrataMax, &a.NBins, &a.NPerBin,
		&a.NPerBinHourly, &a.PSignificant, &a.NBoot, &seed, &a.Workers,
		&a.UStarMin, &a.UStarMax,
	)
	if err == sql.ErrNoRows {
		return &AnalysisData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis parameters: %w", err)
	}
	a.Seed = uint64(seed)
	return &a, nil
}

// GetSites returns site configurations from the database
func (s *SQLiteProvider) GetSites() ([]SiteData, error) {
	query := `
		SELECT name, year, input, latitude, longitude, utc_offset, sentinel
		FROM sites
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY name, year
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteData
	for rows.Next() {
		var site SiteData
		var year sql.NullInt64
		var lat, lon, offset, sentinel sql.NullFloat64

		if err := rows.Scan(&site.Name, &year, &site.Input, &lat, &lon, &offset, &sentinel); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}

		// Convert nullable fields to zero if NULL
		site.Year = int(year.Int64)
		site.Latitude = lat.Float64
		site.Longitude = lon.Float64
		site.UTCOffset = offset.Float64
		site.Sentinel = sentinel.Float64

		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend, path, connection_string
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backend string
		var path, connStr sql.NullString
		if err := rows.Scan(&backend, &path, &connStr); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backend {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "timescaledb":
			storage.TimescaleDB = &TimescaleDBData{ConnectionString: connStr.String}
		default:
			return nil, fmt.Errorf("unknown storage backend %q", backend)
		}
	}
	return storage, rows.Err()
}

// IsReadOnly returns false since SQLite supports write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if err := s.clearExistingConfig(tx, configID); err != nil {
		return err
	}
	if err := s.insertAnalysis(tx, configID, &configData.Analysis); err != nil {
		return err
	}
	for i := range configData.Sites {
		if err := s.insertSite(tx, configID, &configData.Sites[i]); err != nil {
			return fmt.Errorf("failed to insert site %s: %w", configData.Sites[i].Name, err)
		}
	}
	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	if _, err := tx.Exec("INSERT OR IGNORE INTO configs (name) VALUES (?)", defaultConfigName); err != nil {
		return 0, fmt.Errorf("failed to create config: %w", err)
	}
	var id int64
	if err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", defaultConfigName).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get config ID: %w", err)
	}
	return id, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	for _, table := range []string{"analysis", "sites", "storage_configs"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE config_id = ?", configID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteProvider) insertAnalysis(tx *sql.Tx, configID int64, a *AnalysisData) error {
	query := `
		INSERT INTO analysis (config_id, n_seasons, n_strata_min, n_strata_max,
			n_bins, n_per_bin, n_per_bin_hourly, p_significant, n_boot, seed,
			workers, ustar_min, ustar_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID, a.NSeasons, a.NStrataMin, a.NStrataMax,
		a.NBins, a.NPerBin, a.NPerBinHourly, a.PSignificant, a.NBoot, int64(a.Seed),
		a.Workers, a.UStarMin, a.UStarMax)
	if err != nil {
		return fmt.Errorf("failed to insert analysis parameters: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) insertSite(tx *sql.Tx, configID int64, site *SiteData) error {
	query := `
		INSERT INTO sites (config_id, name, year, input, latitude, longitude, utc_offset, sentinel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	year := sql.NullInt64{Int64: int64(site.Year), Valid: site.Year != 0}
	_, err := tx.Exec(query, configID, site.Name, year, site.Input,
		site.Latitude, site.Longitude, site.UTCOffset, nullFloat64(site.Sentinel))
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	query := `
		INSERT INTO storage_configs (config_id, backend, path, connection_string)
		VALUES (?, ?, ?, ?)
	`
	if storage.SQLite != nil {
		if _, err := tx.Exec(query, configID, "sqlite", storage.SQLite.Path, nil); err != nil {
			return fmt.Errorf("failed to insert SQLite storage config: %w", err)
		}
	}
	if storage.TimescaleDB != nil {
		if _, err := tx.Exec(query, configID, "timescaledb", nil, storage.TimescaleDB.ConnectionString); err != nil {
			return fmt.Errorf("failed to insert TimescaleDB storage config: %w", err)
		}
	}
	return nil
}

func nullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}
