// Package db implements persistence for the survey backend on database/sql.
// Queries use $N placeholders, which both supported drivers (sqlite3 for
// development, postgres for deployment) accept, so one store serves both.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/appdiversa/diversa-server/internal/config"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	database, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
			database.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return database, nil
}
