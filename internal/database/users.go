package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetUser fetches a user by normalized address.
func (s *Store) GetUser(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		s.rebind(`SELECT email, display_name, status, created_at, updated_at FROM users WHERE email = ?`),
		email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	user.materialize()
	return user, nil
}

// SetUserStatus transitions a user's lifecycle state. Users are retained for
// audit regardless of state; setting the same status twice is a no-op, which
// keeps control-phrase handling idempotent across re-runs.
func (s *Store) SetUserStatus(ctx context.Context, email string, status UserStatus) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET status = ?, updated_at = ? WHERE email = ?`),
		string(status), time.Now().UnixNano(), email)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return nil
}
