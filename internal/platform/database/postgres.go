package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"live_contest/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

func Connect(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxConns)
	db.SetMaxIdleConns(cfg.DBMaxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL database")
	return db, nil
}

func Close(db *sql.DB, log logrus.FieldLogger) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("Closing database connection failed")
			return
		}
		log.Info("Database connection closed")
	}
}
