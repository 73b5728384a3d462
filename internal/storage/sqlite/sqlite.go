// Package sqlite stores threshold results in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/ustarthreshold/internal/storage"
	"github.com/chrissnell/ustarthreshold/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage holds the connection to a SQLite result database
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ storage.ResultStore = (*Storage)(nil)

// MigrationProvider returns the embedded result schema migrations
func MigrationProvider() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFiles, "migrations", "schema_migrations", "sqlite")
}

// New opens or creates the database at path and brings its schema up to date
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.NewMigrator(db, MigrationProvider(), logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("SQLite result storage ready", "path", path)
	return &Storage{db: db, logger: logger}, nil
}

// SaveSummary stores one result record. Saving the same run, site, year
// and model again replaces the earlier row.
func (s *Storage) SaveSummary(ctx context.Context, r storage.Record) error {
	vectors, err := storage.EncodeVectors(r)
	if err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO ustar_threshold (
			run_id, site, year, model, mode, n_boot, created_at,
			threshold, threshold_lo, threshold_hi,
			sine_offset, sine_amplitude, sine_phase,
			frac_sig, frac_mode_d, frac_select, failure, vectors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.RunID.String(), r.Site, r.Year, r.Model, r.Mode, r.NBoot, r.CreatedAt.Format(time.RFC3339Nano),
		nullFloat64(r.Threshold), nullFloat64(r.ThresholdLo), nullFloat64(r.ThresholdHi),
		nullFloat64(r.SineOffset), nullFloat64(r.SineAmplitude), nullFloat64(r.SinePhase),
		nullFloat64(r.FracSig), nullFloat64(r.FracModeD), nullFloat64(r.FracSelect),
		r.Failure, vectors,
	)
	if err != nil {
		return fmt.Errorf("could not store %s %d result: %w", r.Site, r.Year, err)
	}
	s.logger.Debugw("stored threshold result", "site", r.Site, "year", r.Year, "model", r.Model)
	return nil
}

// Records returns the rows written by one run, ordered by site, year and model
func (s *Storage) Records(ctx context.Context, runID uuid.UUID) ([]storage.Record, error) {
	query := `
		SELECT run_id, site, year, model, mode, n_boot, created_at,
		       threshold, threshold_lo, threshold_hi,
		       sine_offset, sine_amplitude, sine_phase,
		       frac_sig, frac_mode_d, frac_select, failure, vectors
		FROM ustar_threshold
		WHERE run_id = ?
		ORDER BY site, year, model
	`
	rows, err := s.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var r storage.Record
		var id, created string
		var mode, failure sql.NullString
		var f [9]sql.NullFloat64
		var vectors []byte
		err := rows.Scan(&id, &r.Site, &r.Year, &r.Model, &mode, &r.NBoot, &created,
			&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8],
			&failure, &vectors)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if r.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad run id %q: %w", id, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", created, err)
		}
		r.Mode, r.Failure = mode.String, failure.String
		dst := []*float64{
			&r.Threshold, &r.ThresholdLo, &r.ThresholdHi,
			&r.SineOffset, &r.SineAmplitude, &r.SinePhase,
			&r.FracSig, &r.FracModeD, &r.FracSelect,
		}
		for i, p := range dst {
			*p = floatOrNaN(f[i])
		}
		if err := storage.DecodeVectors(vectors, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func nullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: !math.IsNaN(f) && !math.IsInf(f, 0)}
}

func floatOrNaN(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
