package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/ustarthreshold/internal/storage"
	"github.com/chrissnell/ustarthreshold/internal/storage/sqlite"
	"github.com/chrissnell/ustarthreshold/internal/storage/timescaledb"
	"github.com/chrissnell/ustarthreshold/pkg/config"
)

// ErrNoReader is returned when no configured backend can read results back
var ErrNoReader = errors.New("no configured storage backend can read results")

// StorageManager holds our active storage backends and fans every result
// out to all of them.
type StorageManager struct {
	Engines []StorageEngine
	logger  *zap.SugaredLogger
}

// StorageEngine is one named backend
type StorageEngine struct {
	Name   string
	Engine storage.ResultStore
}

var (
	_ storage.ResultStore  = (*StorageManager)(nil)
	_ storage.ResultReader = (*StorageManager)(nil)
	_ storage.ResultReader = (*sqlite.Storage)(nil)
	_ storage.ResultReader = (*timescaledb.Storage)(nil)
)

// NewStorageManager creates a StorageManager populated with every backend
// present in c. With no backends configured results are only logged.
func NewStorageManager(ctx context.Context, c config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &StorageManager{logger: logger}

	if c.SQLite != nil {
		if err := s.AddEngine(ctx, "sqlite", c); err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
	}

	if c.TimescaleDB != nil {
		if err := s.AddEngine(ctx, "timescaledb", c); err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}

	if len(s.Engines) == 0 {
		logger.Warn("no storage backends configured; results will not be persisted")
	}
	return s, nil
}

// AddEngine adds a new StorageEngine of name engineName
func (s *StorageManager) AddEngine(ctx context.Context, engineName string, c config.StorageData) error {
	var (
		engine storage.ResultStore
		err    error
	)

	switch engineName {
	case "sqlite":
		engine, err = sqlite.New(ctx, c.SQLite.Path, s.logger.Named("sqlite"))
	case "timescaledb":
		engine, err = timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
	default:
		return fmt.Errorf("unknown storage backend %q", engineName)
	}
	if err != nil {
		return err
	}

	s.Engines = append(s.Engines, StorageEngine{Name: engineName, Engine: engine})
	s.logger.Infow("storage backend enabled", "backend", engineName)
	return nil
}

// SaveSummary writes r to every backend. A failing backend does not stop
// the others; all failures are returned together.
func (s *StorageManager) SaveSummary(ctx context.Context, r storage.Record) error {
	var errs []error
	for _, e := range s.Engines {
		if err := e.Engine.SaveSummary(ctx, r); err != nil {
			s.logger.Errorw("failed to store result", "backend", e.Name, "site", r.Site, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Records reads the results of one run from the first backend that can
// return them.
func (s *StorageManager) Records(ctx context.Context, runID uuid.UUID) ([]storage.Record, error) {
	for _, e := range s.Engines {
		if r, ok := e.Engine.(storage.ResultReader); ok {
			return r.Records(ctx, runID)
		}
	}
	return nil, ErrNoReader
}

// Close closes every backend
func (s *StorageManager) Close() error {
	var errs []error
	for _, e := range s.Engines {
		if err := e.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}
