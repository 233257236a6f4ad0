package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, direction, external_id, subject, body,
	verdict, verdict_reason, verdict_score, delivery_status, in_reply_to, received_at, seq`

const conversationColumns = `id, user_email, summary, status, created_at, last_activity`

// RecordInbound resolves or creates the sender's user and single active
// conversation, and idempotently inserts the message. If the external id is
// already known, the stored message is returned with a true duplicate flag
// and no other state is changed.
func (s *Store) RecordInbound(ctx context.Context, in InboundEmail) (Conversation, Message, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("begin record inbound: %w", err)
	}
	defer tx.Rollback()

	// Duplicate check first: the idempotency boundary.
	var existing Message
	err = tx.GetContext(ctx, &existing,
		s.rebind(`SELECT `+messageColumns+` FROM messages WHERE external_id = ?`),
		in.ExternalID)
	if err == nil {
		var conv Conversation
		if err := tx.GetContext(ctx, &conv,
			s.rebind(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`),
			existing.ConversationID); err != nil {
			return Conversation{}, Message{}, false, fmt.Errorf("load conversation for duplicate: %w", err)
		}
		existing.materialize()
		conv.materialize()
		return conv, existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, Message{}, false, fmt.Errorf("check duplicate: %w", err)
	}

	now := time.Now().UnixNano()

	// Create the user on first contact; an existing user's lifecycle state is
	// never touched here.
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO users (email, display_name, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (email) DO NOTHING`),
		in.Address, in.DisplayName, string(UserActive), now, now); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("upsert user: %w", err)
	}

	conv, err := s.activeConversation(ctx, tx, in, now)
	if err != nil {
		return Conversation{}, Message{}, false, err
	}

	msgID := uuid.NewString()
	receivedAt := in.ReceivedAt.UnixNano()
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, conversation_id, direction, external_id, subject, body,
			delivery_status, received_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages))
		 ON CONFLICT (external_id) DO NOTHING`),
		msgID, conv.ID, string(DirectionInbound), in.ExternalID, in.Subject, in.Body,
		"", receivedAt); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("insert inbound message: %w", err)
	}

	// last_activity is monotonically non-decreasing.
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE conversations SET last_activity = CASE WHEN last_activity < ? THEN ? ELSE last_activity END
		 WHERE id = ?`),
		receivedAt, receivedAt, conv.ID); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("touch conversation: %w", err)
	}

	var msg Message
	if err := tx.GetContext(ctx, &msg,
		s.rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), msgID); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("read back inbound message: %w", err)
	}
	if err := tx.GetContext(ctx, &conv,
		s.rebind(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), conv.ID); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("read back conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Conversation{}, Message{}, false, fmt.Errorf("commit record inbound: %w", err)
	}
	msg.materialize()
	conv.materialize()
	return conv, msg, false, nil
}

// activeConversation finds the user's single active conversation or creates
// it. A new conversation's summary starts as the first message body, which
// states the user's goal.
func (s *Store) activeConversation(ctx context.Context, tx querier, in InboundEmail, now int64) (Conversation, error) {
	var conv Conversation
	err := tx.GetContext(ctx, &conv, s.rebind(
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_email = ? AND status = ? ORDER BY created_at DESC LIMIT 1`),
		in.Address, string(ConversationActive))
	if err == nil {
		conv.materialize()
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, fmt.Errorf("find active conversation: %w", err)
	}

	conv = Conversation{
		ID:             uuid.NewString(),
		UserEmail:      in.Address,
		Summary:        strings.TrimSpace(in.Body),
		Status:         ConversationActive,
		CreatedAtNS:    now,
		LastActivityNS: now,
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO conversations (id, user_email, summary, status, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		conv.ID, conv.UserEmail, conv.Summary, string(conv.Status), conv.CreatedAtNS, conv.LastActivityNS); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	conv.materialize()
	return conv, nil
}

// AttachVerdict attaches a moderation verdict one time. A second attach fails
// with ErrAlreadyModerated, making re-moderation impossible by construction.
func (s *Store) AttachVerdict(ctx context.Context, messageID string, v Verdict) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE messages SET verdict = ?, verdict_reason = ?, verdict_score = ?
		 WHERE id = ? AND verdict IS NULL`),
		string(v.Decision), v.Reason, v.Score, messageID)
	if err != nil {
		return fmt.Errorf("attach verdict: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach verdict: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var count int
	if err := s.db.GetContext(ctx, &count,
		s.rebind(`SELECT COUNT(*) FROM messages WHERE id = ?`), messageID); err != nil {
		return fmt.Errorf("attach verdict: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return fmt.Errorf("message %s: %w", messageID, ErrAlreadyModerated)
}

// RecordOutbound inserts an outbound message with delivery status pending.
// inReplyTo is the seq of the inbound message the reply answers; zero marks
// an unsolicited message such as a check-in nudge.
func (s *Store) RecordOutbound(ctx context.Context, conversationID, subject, body string, inReplyTo int64) (Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin record outbound: %w", err)
	}
	defer tx.Rollback()

	msgID := uuid.NewString()
	now := time.Now().UnixNano()
	externalID := fmt.Sprintf("<%s@email-bot.local>", msgID)

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, conversation_id, direction, external_id, subject, body,
			delivery_status, in_reply_to, received_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages))`),
		msgID, conversationID, string(DirectionOutbound), externalID, subject, body,
		string(DeliveryPending), inReplyTo, now); err != nil {
		return Message{}, fmt.Errorf("insert outbound message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE conversations SET last_activity = CASE WHEN last_activity < ? THEN ? ELSE last_activity END
		 WHERE id = ?`),
		now, now, conversationID); err != nil {
		return Message{}, fmt.Errorf("touch conversation: %w", err)
	}

	var msg Message
	if err := tx.GetContext(ctx, &msg,
		s.rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), msgID); err != nil {
		return Message{}, fmt.Errorf("read back outbound message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit record outbound: %w", err)
	}
	msg.materialize()
	return msg, nil
}

// MarkDelivery transitions an outbound message from pending to sent or
// failed. No other transition is permitted.
func (s *Store) MarkDelivery(ctx context.Context, messageID string, status DeliveryStatus) error {
	if status != DeliverySent && status != DeliveryFailed {
		return fmt.Errorf("target status %s: %w", status, ErrInvalidTransition)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE messages SET delivery_status = ?
		 WHERE id = ? AND direction = ? AND delivery_status = ?`),
		string(status), messageID, string(DirectionOutbound), string(DeliveryPending))
	if err != nil {
		return fmt.Errorf("mark delivery: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark delivery: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %s to %s: %w", messageID, status, ErrInvalidTransition)
	}
	return nil
}

// ContextFor returns the conversation summary plus the recent message window
// in chronological order, bounding what is passed to reply generation.
func (s *Store) ContextFor(ctx context.Context, conversationID string) (Context, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv,
		s.rebind(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return Context{}, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return Context{}, fmt.Errorf("get conversation: %w", err)
	}

	var window []Message
	if err := s.db.SelectContext(ctx, &window, s.rebind(
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`),
		conversationID, s.contextWindow); err != nil {
		return Context{}, fmt.Errorf("get context window: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	for i := range window {
		window[i].materialize()
	}
	return Context{Summary: conv.Summary, Messages: window}, nil
}

// ReplyFor returns the outbound message recorded as the answer to the inbound
// message at the given seq, or nil if no reply exists yet. This is the
// recovery primitive that distinguishes "never composed" from "pending send"
// from "sent" without re-running generation. Matching on in_reply_to keeps
// unsolicited messages (check-in nudges) from being mistaken for the reply.
func (s *Store) ReplyFor(ctx context.Context, conversationID string, inboundSeq int64) (*Message, error) {
	var msg Message
	err := s.db.GetContext(ctx, &msg, s.rebind(
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = ? AND direction = ? AND in_reply_to = ?
		 ORDER BY seq ASC LIMIT 1`),
		conversationID, string(DirectionOutbound), inboundSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reply: %w", err)
	}
	msg.materialize()
	return &msg, nil
}

// querier is the subset of sqlx.Tx used by transactional helpers.
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
