package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers outbound messages through the SendGrid API.
// Alternative to SMTPSender for deployments without a submission account.
type SendGridSender struct {
	apiKey   string
	from     string
	fromName string
}

// NewSendGridSender creates a SendGrid-backed sender.
func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, from: from, fromName: fromName}
}

// Send submits one plain-text message via the SendGrid v3 mail API.
func (s *SendGridSender) Send(ctx context.Context, to, subject, body string) error {
	if s.apiKey == "" {
		return fmt.Errorf("SendGrid API key not configured")
	}

	from := sgmail.NewEmail(s.fromName, s.from)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, body, body)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
