package database

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/ustarthreshold/internal/log"
)

// CreateConnection opens a gorm connection to the PostgreSQL/TimescaleDB
// database at connectionString. gorm's own logging goes through zap.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warnf("unable to create a TimescaleDB connection: %v", err)
		return nil, err
	}

	return db, nil
}
