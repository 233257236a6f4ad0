package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors for contract violations surfaced to the orchestrator.
var (
	// ErrStaleCheckpoint is returned when an advance would move the
	// checkpoint backwards.
	ErrStaleCheckpoint = errors.New("stale checkpoint")
	// ErrAlreadyModerated is returned on a second verdict attach; a message
	// is moderated at most once by construction.
	ErrAlreadyModerated = errors.New("message already moderated")
	// ErrInvalidTransition is returned for delivery-state transitions other
	// than pending to sent or failed.
	ErrInvalidTransition = errors.New("invalid delivery transition")
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the conversation store. All mutating operations run inside their
// own transaction; callers hold no entity state across invocations.
type Store struct {
	db            *sqlx.DB
	contextWindow int
}

// NewStore wraps an open database connection and ensures the schema exists.
// contextWindow bounds the number of recent messages handed to reply
// generation.
func NewStore(db *sqlx.DB, contextWindow int) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if contextWindow <= 0 {
		contextWindow = 12
	}
	s := &Store{db: db, contextWindow: contextWindow}
	if err := s.createTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the schema. Types are restricted to TEXT, BIGINT and
// REAL so the same statements run on both sqlite and Postgres; timestamps are
// stored as unix nanoseconds.
func (s *Store) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_email TEXT NOT NULL REFERENCES users(email),
			summary TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at BIGINT NOT NULL,
			last_activity BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_email, status)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			direction TEXT NOT NULL,
			external_id TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			verdict TEXT,
			verdict_reason TEXT,
			verdict_score REAL,
			delivery_status TEXT NOT NULL DEFAULT '',
			in_reply_to BIGINT NOT NULL DEFAULT 0,
			received_at BIGINT NOT NULL,
			seq BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages(conversation_id, seq)`,
		`CREATE TABLE IF NOT EXISTS checkpoint (
			id BIGINT PRIMARY KEY CHECK (id = 1),
			received_at BIGINT NOT NULL,
			external_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_lock (
			id BIGINT PRIMARY KEY CHECK (id = 1),
			holder TEXT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			conversation_id TEXT PRIMARY KEY REFERENCES conversations(id),
			scheduled_for BIGINT NOT NULL,
			reminders_sent BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// rebind adapts ? placeholders to the driver's bindvar style.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}
