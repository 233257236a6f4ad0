package mail

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imapMessage(raw string, section *imap.BodySectionName) *imap.Message {
	return &imap.Message{
		SeqNum:       1,
		InternalDate: time.Unix(1700000000, 0),
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		},
	}
}

func TestParseMessage_ExtractsFields(t *testing.T) {
	section := &imap.BodySectionName{}
	raw := "Message-Id: <m1@mx.example.com>\r\n" +
		"From: Alice Smith <alice@example.com>\r\n" +
		"Subject: Goal update\r\n" +
		"Date: Tue, 25 Aug 2026 10:30:00 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Ran 5k today"

	in, err := parseMessage(imapMessage(raw, section), section)
	require.NoError(t, err)
	assert.Equal(t, "<m1@mx.example.com>", in.ExternalID)
	assert.Equal(t, "alice@example.com", in.Sender)
	assert.Equal(t, "Alice Smith", in.SenderName)
	assert.Equal(t, "Goal update", in.Subject)
	assert.Equal(t, "Ran 5k today", in.Body)
	assert.Equal(t, 2026, in.ReceivedAt.Year(), "Date header wins over the internal date")
}

func TestParseMessage_RequiresMessageID(t *testing.T) {
	section := &imap.BodySectionName{}
	raw := "From: alice@example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello"

	_, err := parseMessage(imapMessage(raw, section), section)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Message-Id")
}

func TestListNew_DialFailureIsBounded(t *testing.T) {
	mb := NewIMAPMailbox("10.255.255.1:993", "user", "secret")
	mb.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := mb.ListNew(context.Background(), Cursor{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "dial honors the configured timeout")
}
