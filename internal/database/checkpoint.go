package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zezere/email-bot/internal/mail"
)

// Checkpoint returns the durable mailbox cursor. A zero cursor means first
// run (beginning of time).
func (s *Store) Checkpoint(ctx context.Context) (mail.Cursor, error) {
	var row struct {
		ReceivedAt int64  `db:"received_at"`
		ExternalID string `db:"external_id"`
	}
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT received_at, external_id FROM checkpoint WHERE id = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return mail.Cursor{}, nil
	}
	if err != nil {
		return mail.Cursor{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return mail.Cursor{ReceivedAt: time.Unix(0, row.ReceivedAt), ExternalID: row.ExternalID}, nil
}

// AdvanceCheckpoint durably moves the cursor forward. Re-writing the current
// cursor is a no-op; moving backwards fails with ErrStaleCheckpoint so a
// delayed writer can never regress the mailbox position.
func (s *Store) AdvanceCheckpoint(ctx context.Context, cursor mail.Cursor) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance checkpoint: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		ReceivedAt int64  `db:"received_at"`
		ExternalID string `db:"external_id"`
	}
	err = tx.GetContext(ctx, &row,
		s.rebind(`SELECT received_at, external_id FROM checkpoint WHERE id = 1`))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO checkpoint (id, received_at, external_id) VALUES (1, ?, ?)`),
			cursor.ReceivedAt.UnixNano(), cursor.ExternalID); err != nil {
			return fmt.Errorf("insert checkpoint: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read checkpoint: %w", err)
	default:
		stored := mail.Cursor{ReceivedAt: time.Unix(0, row.ReceivedAt), ExternalID: row.ExternalID}
		if cursor.Before(stored) {
			return fmt.Errorf("advance to %s behind %s: %w", cursor, stored, ErrStaleCheckpoint)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE checkpoint SET received_at = ?, external_id = ? WHERE id = 1`),
			cursor.ReceivedAt.UnixNano(), cursor.ExternalID); err != nil {
			return fmt.Errorf("update checkpoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// AcquireRunLock takes the exclusive run lease if it is free or expired.
// It returns false without error when another live holder has it; overlapping
// invocations are expected and exit cleanly.
func (s *Store) AcquireRunLock(ctx context.Context, holder string, lease time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO run_lock (id, holder, expires_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE run_lock.expires_at <= ?`),
		holder, now.Add(lease).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return rows == 1, nil
}

// ReleaseRunLock frees the lease if it is still held by this holder. Releasing
// a lease that expired and was reclaimed elsewhere is a harmless no-op.
func (s *Store) ReleaseRunLock(ctx context.Context, holder string) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM run_lock WHERE id = 1 AND holder = ?`), holder); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
