// Package database owns all durable state: users, conversations, messages,
// the processing checkpoint and the cross-invocation run lock. No other
// component retains entity state across calls.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Postgres deployments
	_ "modernc.org/sqlite" // default local engine, pure Go
)

func init() {
	// modernc's driver is not registered with sqlx; it uses ? placeholders.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open creates a database connection. A postgres:// URL selects the Postgres
// driver; anything else is treated as a sqlite file path (the default
// deployment keeps state in a local file).
func Open(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	driver := "sqlite"
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		driver = "postgres"
	}

	db, err := sqlx.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// Single writer; every invocation is single-threaded anyway.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		if !strings.Contains(databaseURL, ":memory:") && !strings.Contains(databaseURL, "mode=memory") {
			if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
				return nil, fmt.Errorf("enable WAL: %w", err)
			}
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
