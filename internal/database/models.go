package database

import (
	"database/sql"
	"time"
)

// UserStatus is a user's lifecycle state. Users are never hard-deleted; an
// unsubscribed user stays on record but is excluded from reply generation.
type UserStatus string

const (
	UserActive       UserStatus = "active"
	UserPaused       UserStatus = "paused"
	UserUnsubscribed UserStatus = "unsubscribed"
)

// ConversationStatus is the state of the single ongoing thread with a user.
type ConversationStatus string

const (
	ConversationActive  ConversationStatus = "active"
	ConversationDormant ConversationStatus = "dormant"
	ConversationClosed  ConversationStatus = "closed"
)

// Direction distinguishes inbound from outbound messages.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks outbound transmission. Only pending messages may
// transition, to sent or failed.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Decision is the moderation outcome for one inbound message.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionBlock  Decision = "block"
	DecisionReview Decision = "review"
)

// Verdict is the moderation result attached one-time to an inbound message.
type Verdict struct {
	Decision Decision
	Reason   string
	Score    float64
}

// User is one correspondent, keyed by normalized email address.
type User struct {
	Email       string     `db:"email"`
	DisplayName string     `db:"display_name"`
	Status      UserStatus `db:"status"`
	CreatedAt   time.Time  `db:"-"`
	UpdatedAt   time.Time  `db:"-"`

	CreatedAtNS int64 `db:"created_at"`
	UpdatedAtNS int64 `db:"updated_at"`
}

// Conversation is the single ongoing accountability thread for one user.
type Conversation struct {
	ID           string             `db:"id"`
	UserEmail    string             `db:"user_email"`
	Summary      string             `db:"summary"`
	Status       ConversationStatus `db:"status"`
	CreatedAt    time.Time          `db:"-"`
	LastActivity time.Time          `db:"-"`

	CreatedAtNS    int64 `db:"created_at"`
	LastActivityNS int64 `db:"last_activity"`
}

// Message is an immutable record of one inbound or outbound email. Seq is a
// store-assigned monotonic position used to order recovery decisions; the
// remote timestamp alone is not trusted.
type Message struct {
	ID             string          `db:"id"`
	ConversationID string          `db:"conversation_id"`
	Direction      Direction       `db:"direction"`
	ExternalID     string          `db:"external_id"`
	Subject        string          `db:"subject"`
	Body           string          `db:"body"`
	DeliveryStatus DeliveryStatus  `db:"delivery_status"`
	Seq            int64           `db:"seq"`
	InReplyTo      int64           `db:"in_reply_to"`
	ReceivedAt     time.Time       `db:"-"`
	VerdictValue   sql.NullString  `db:"verdict"`
	VerdictReason  sql.NullString  `db:"verdict_reason"`
	VerdictScore   sql.NullFloat64 `db:"verdict_score"`

	ReceivedAtNS int64 `db:"received_at"`
}

// Verdict returns the attached moderation verdict, or nil if the message has
// not been moderated.
func (m *Message) Verdict() *Verdict {
	if !m.VerdictValue.Valid {
		return nil
	}
	return &Verdict{
		Decision: Decision(m.VerdictValue.String),
		Reason:   m.VerdictReason.String,
		Score:    m.VerdictScore.Float64,
	}
}

// InboundEmail carries the fields of a fetched message that the store
// persists.
type InboundEmail struct {
	Address     string
	DisplayName string
	ExternalID  string
	Subject     string
	Body        string
	ReceivedAt  time.Time
}

// Context is the bounded conversation context handed to reply generation:
// the cumulative summary plus a recent message window in chronological order.
type Context struct {
	Summary  string
	Messages []Message
}

// Schedule is the next agreed check-in for a conversation.
type Schedule struct {
	ConversationID string    `db:"conversation_id"`
	UserEmail      string    `db:"user_email"`
	ScheduledFor   time.Time `db:"-"`
	RemindersSent  int       `db:"reminders_sent"`

	ScheduledForNS int64 `db:"scheduled_for"`
}

func (u *User) materialize() {
	u.CreatedAt = time.Unix(0, u.CreatedAtNS)
	u.UpdatedAt = time.Unix(0, u.UpdatedAtNS)
}

func (c *Conversation) materialize() {
	c.CreatedAt = time.Unix(0, c.CreatedAtNS)
	c.LastActivity = time.Unix(0, c.LastActivityNS)
}

func (m *Message) materialize() {
	m.ReceivedAt = time.Unix(0, m.ReceivedAtNS)
}

func (s *Schedule) materialize() {
	s.ScheduledFor = time.Unix(0, s.ScheduledForNS)
}
