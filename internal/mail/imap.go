package mail

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

// IMAPMailbox fetches inbound messages over IMAP with TLS. Each ListNew call
// opens a fresh connection, matching the one-shot invocation model.
type IMAPMailbox struct {
	Server   string // host:port
	Username string
	Password string
	Folder   string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewIMAPMailbox creates a mailbox reader for the given account. The folder
// defaults to INBOX.
func NewIMAPMailbox(server, username, password string) *IMAPMailbox {
	return &IMAPMailbox{
		Server:   server,
		Username: username,
		Password: password,
		Folder:   "INBOX",
		Timeout:  30 * time.Second,
		Logger:   zerolog.Nop(),
	}
}

// ListNew returns messages received at or after the cursor, parsed down to
// sender, subject and plain-text body. IMAP SINCE has day granularity, so the
// search over-fetches; exact filtering happens against the cursor and final
// deduplication is the store's job.
func (m *IMAPMailbox) ListNew(ctx context.Context, since Cursor) ([]Inbound, error) {
	dialer := &net.Dialer{Timeout: m.Timeout}
	cl, err := client.DialWithDialerTLS(dialer, m.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", m.Server, err)
	}
	defer cl.Logout()
	cl.Timeout = m.Timeout

	if err := cl.Login(m.Username, m.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := cl.Select(m.Folder, true); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", m.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	if !since.IsZero() {
		criteria.Since = since.ReceivedAt.Truncate(24 * time.Hour)
	}
	uids, err := cl.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- cl.Fetch(seqSet, items, messages)
	}()

	var inbound []Inbound
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			// Drain so the fetch goroutine can finish.
			for range messages {
			}
			<-done
			return nil, err
		}
		in, err := parseMessage(msg, section)
		if err != nil {
			// A single unparseable message must not sink the whole fetch,
			// but it must stay visible for operator review.
			m.Logger.Warn().Err(err).Uint32("imap_seq", msg.SeqNum).
				Str("folder", m.Folder).Msg("skipping unparseable message")
			continue
		}
		if since.IsZero() || !in.Position().Before(since) {
			inbound = append(inbound, in)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return inbound, nil
}

// parseMessage extracts the fields the core needs from a raw IMAP message.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (Inbound, error) {
	body := msg.GetBody(section)
	if body == nil {
		return Inbound{}, io.EOF
	}
	mr, err := gomail.CreateReader(body)
	if err != nil {
		return Inbound{}, fmt.Errorf("read message: %w", err)
	}

	in := Inbound{ReceivedAt: msg.InternalDate}

	header := mr.Header
	in.ExternalID = header.Get("Message-Id")
	if in.ExternalID == "" {
		return Inbound{}, fmt.Errorf("message without Message-Id")
	}
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		in.Sender = from[0].Address
		in.SenderName = from[0].Name
	} else {
		in.Sender = header.Get("From")
	}
	if subject, err := header.Subject(); err == nil {
		in.Subject = subject
	}
	if date, err := header.Date(); err == nil && !date.IsZero() {
		in.ReceivedAt = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		if h, ok := part.Header.(*gomail.InlineHeader); ok {
			contentType, _, err := h.ContentType()
			if err != nil {
				continue
			}
			if contentType == "text/plain" {
				text, err := io.ReadAll(part.Body)
				if err != nil {
					continue
				}
				in.Body = string(text)
				break
			}
		}
	}
	return in, nil
}
