// Package mail defines the transport collaborator boundary: listing new
// inbound messages from a mailbox and sending outbound messages. The
// orchestration core depends only on the interfaces here; IMAP, SMTP and
// SendGrid adapters live alongside them.
package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Cursor marks a position in the mailbox. It orders by receive time first,
// with the external message id as a deterministic tie-breaker. Remote
// timestamps are not trusted as an exclusive boundary; callers deduplicate by
// external id instead.
type Cursor struct {
	ReceivedAt time.Time
	ExternalID string
}

// IsZero reports whether the cursor marks the beginning of time (first run).
func (c Cursor) IsZero() bool {
	return c.ReceivedAt.IsZero() && c.ExternalID == ""
}

// Before reports whether c is strictly earlier than other.
func (c Cursor) Before(other Cursor) bool {
	if !c.ReceivedAt.Equal(other.ReceivedAt) {
		return c.ReceivedAt.Before(other.ReceivedAt)
	}
	return c.ExternalID < other.ExternalID
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "<start>"
	}
	return fmt.Sprintf("%s/%s", c.ReceivedAt.UTC().Format(time.RFC3339Nano), c.ExternalID)
}

// Inbound is one message fetched from the mailbox.
type Inbound struct {
	ExternalID string
	Sender     string
	SenderName string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Position returns the cursor marking this message's place in the mailbox.
func (in Inbound) Position() Cursor {
	return Cursor{ReceivedAt: in.ReceivedAt, ExternalID: in.ExternalID}
}

// Mailbox lists inbound messages received at or after a cursor. The boundary
// is inclusive; duplicate delivery across invocations is expected and handled
// by the store's idempotent insert.
type Mailbox interface {
	ListNew(ctx context.Context, since Cursor) ([]Inbound, error)
}

// Sender delivers one outbound message. An error means the transmission
// outcome is unconfirmed; callers must treat the message as still pending.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NormalizeAddress parses and canonicalizes an email address to its
// lower-cased addr-spec form. It fails on addresses that cannot be parsed,
// which callers surface as malformed inbound content.
func NormalizeAddress(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", raw, err)
	}
	return strings.ToLower(addr.Address), nil
}
