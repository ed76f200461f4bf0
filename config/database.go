package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDB opens the Supabase Postgres database, retrying while the pooler warms up.
func ConnectDB(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := NewGormLogger(log, time.Second,
		`FROM "events"`,
		`FROM "workout_schedule"`,
		`FROM "daily_reminders"`,
	)

	gormConfig := &gorm.Config{
		Logger: gormLogger,
		// Every write here is a single statement; the ledger relies on ON CONFLICT, not a wrapping transaction.
		SkipDefaultTransaction: true,
	}

	attempts := cfg.Database.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	retryDelay := 2 * time.Second

	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.Database.URL), gormConfig)
		if err == nil {
			break
		}
		log.Warn("Database connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < attempts-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
