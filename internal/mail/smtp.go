package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPSender delivers outbound messages through a plain SMTP submission
// endpoint with STARTTLS and PLAIN auth.
type SMTPSender struct {
	Addr     string // host:port, typically port 587
	Username string
	Password string
	From     string
	FromName string
}

// NewSMTPSender creates a sender authenticating as username and sending from
// the given address.
func NewSMTPSender(addr, username, password, from, fromName string) *SMTPSender {
	return &SMTPSender{
		Addr:     addr,
		Username: username,
		Password: password,
		From:     from,
		FromName: fromName,
	}
}

// Send submits one plain-text message. Any error leaves the transmission
// outcome unconfirmed.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	var header gomail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*gomail.Address{{Name: s.FromName, Address: s.From}})
	header.SetAddressList("To", []*gomail.Address{{Address: to}})
	header.SetSubject(subject)

	writer, err := gomail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if _, err := io.WriteString(writer, body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	auth := sasl.NewPlainClient("", s.Username, s.Password)
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{to}, &buf); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
