package database

import (
	"fmt"
	"time"

	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database/migrations"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if dbConfig.LogQueries {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected",
		zap.Int("max_open_conns", dbConfig.MaxConns),
		zap.Int("max_idle_conns", dbConfig.MaxIdle),
		zap.Bool("log_queries", dbConfig.LogQueries))
	return db, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := migrations.RunMigrations(db, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
