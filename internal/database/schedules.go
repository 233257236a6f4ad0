package database

import (
	"context"
	"fmt"
	"time"
)

// SetSchedule records the next check-in for a conversation, replacing any
// existing one. Only the next check-in is ever scheduled; rescheduling resets
// the reminder count.
func (s *Store) SetSchedule(ctx context.Context, conversationID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO schedules (conversation_id, scheduled_for, reminders_sent)
		 VALUES (?, ?, 0)
		 ON CONFLICT (conversation_id) DO UPDATE SET scheduled_for = excluded.scheduled_for,
			reminders_sent = 0`),
		conversationID, at.UnixNano()); err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	return nil
}

// DueSchedules returns schedules whose check-in time has passed, restricted
// to active users with active conversations and fewer than maxReminders
// nudges sent.
func (s *Store) DueSchedules(ctx context.Context, now time.Time, maxReminders int) ([]Schedule, error) {
	var due []Schedule
	if err := s.db.SelectContext(ctx, &due, s.rebind(
		`SELECT sc.conversation_id, c.user_email, sc.scheduled_for, sc.reminders_sent
		 FROM schedules sc
		 JOIN conversations c ON c.id = sc.conversation_id
		 JOIN users u ON u.email = c.user_email
		 WHERE sc.scheduled_for <= ? AND sc.reminders_sent < ?
		   AND c.status = ? AND u.status = ?
		 ORDER BY sc.scheduled_for ASC`),
		now.UnixNano(), maxReminders,
		string(ConversationActive), string(UserActive)); err != nil {
		return nil, fmt.Errorf("due schedules: %w", err)
	}
	for i := range due {
		due[i].materialize()
	}
	return due, nil
}

// MarkReminderSent increments a schedule's reminder count.
func (s *Store) MarkReminderSent(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE schedules SET reminders_sent = reminders_sent + 1 WHERE conversation_id = ?`),
		conversationID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule %s: %w", conversationID, ErrNotFound)
	}
	return nil
}
