// Package timescaledb stores threshold results in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrissnell/ustarthreshold/internal/database"
	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/internal/storage"
)

// Storage holds the connection for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

var _ storage.ResultStore = (*Storage)(nil)

// New connects to TimescaleDB and creates the result hypertable if needed
func New(ctx context.Context, connectionString string) (*Storage, error) {
	conn, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	t := &Storage{TimescaleDBConn: conn}

	if err := t.Health(ctx); err != nil {
		t.Close()
		return nil, err
	}

	steps := []struct {
		name string
		sql  string
	}{
		{"TimescaleDB extension", createExtensionSQL},
		{"result table", createTableSQL},
		{"hypertable", createHypertableSQL},
		{"site index", createSiteIndexSQL},
	}
	for _, s := range steps {
		log.Infof("creating %s...", s.name)
		if err := conn.WithContext(ctx).Exec(s.sql).Error; err != nil {
			t.Close()
			return nil, fmt.Errorf("could not create %s: %w", s.name, err)
		}
	}

	return t, nil
}

// SaveSummary stores one result row. A row with the same key is overwritten.
func (t *Storage) SaveSummary(ctx context.Context, r storage.Record) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	err = t.TimescaleDBConn.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		log.Errorf("could not store %s %d result: %v", r.Site, r.Year, err)
		return err
	}
	return nil
}

// Records returns the rows written by one run, ordered by site, year and model
func (t *Storage) Records(ctx context.Context, runID uuid.UUID) ([]storage.Record, error) {
	var rows []database.ThresholdRow
	err := t.TimescaleDBConn.WithContext(ctx).
		Where("run_id = ?", runID.String()).
		Order("site, year, model").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying results: %w", err)
	}
	out := make([]storage.Record, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Health checks that the database answers a trivial query
func (t *Storage) Health(ctx context.Context) error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r storage.Record) (database.ThresholdRow, error) {
	vectors, err := storage.EncodeVectors(r)
	if err != nil {
		return database.ThresholdRow{}, err
	}
	return database.ThresholdRow{
		CreatedAt:     r.CreatedAt,
		RunID:         r.RunID.String(),
		Site:          r.Site,
		Year:          r.Year,
		Model:         r.Model,
		Mode:          r.Mode,
		NBoot:         r.NBoot,
		Threshold:     nullable(r.Threshold),
		ThresholdLo:   nullable(r.ThresholdLo),
		ThresholdHi:   nullable(r.ThresholdHi),
		SineOffset:    nullable(r.SineOffset),
		SineAmplitude: nullable(r.SineAmplitude),
		SinePhase:     nullable(r.SinePhase),
		FracSig:       nullable(r.FracSig),
		FracModeD:     nullable(r.FracModeD),
		FracSelect:    nullable(r.FracSelect),
		Failure:       r.Failure,
		Vectors:       vectors,
	}, nil
}

func fromRow(row database.ThresholdRow) (storage.Record, error) {
	id, err := uuid.Parse(row.RunID)
	if err != nil {
		return storage.Record{}, fmt.Errorf("bad run id %q: %w", row.RunID, err)
	}
	r := storage.Record{
		RunID:         id,
		Site:          row.Site,
		Year:          row.Year,
		Model:         row.Model,
		Mode:          row.Mode,
		NBoot:         row.NBoot,
		CreatedAt:     row.CreatedAt,
		Threshold:     value(row.Threshold),
		ThresholdLo:   value(row.ThresholdLo),
		ThresholdHi:   value(row.ThresholdHi),
		SineOffset:    value(row.SineOffset),
		SineAmplitude: value(row.SineAmplitude),
		SinePhase:     value(row.SinePhase),
		FracSig:       value(row.FracSig),
		FracModeD:     value(row.FracModeD),
		FracSelect:    value(row.FracSelect),
		Failure:       row.Failure,
	}
	if err := storage.DecodeVectors(row.Vectors, &r); err != nil {
		return storage.Record{}, err
	}
	return r, nil
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
