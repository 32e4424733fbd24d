package notify

import (
	"context"
	"fmt"
	"strings"

	"salonbook/internal/config"
	"salonbook/internal/domain"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	gomail "github.com/wneessen/go-mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier sends plain-text email through the SendGrid v3 API.
type SendGridNotifier struct {
	client    sendGridClient
	fromEmail string
	fromName  string
}

func NewSendGridNotifier(cfg config.SendGridConfig) *SendGridNotifier {
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *SendGridNotifier) Send(ctx context.Context, n domain.Notification) error {
	if n.To == "" {
		return fmt.Errorf("sendgrid: empty recipient")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", n.To)
	message := mail.NewSingleEmail(from, n.Subject, to, n.Body, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type mailDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPNotifier sends email with PLAIN auth, e.g. a Gmail app password.
type SMTPNotifier struct {
	from   string
	client mailDialer
}

func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.User),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{from: cfg.User, client: client}, nil
}

func (s *SMTPNotifier) Send(ctx context.Context, n domain.Notification) error {
	if n.To == "" {
		return fmt.Errorf("smtp: empty recipient")
	}

	msg, err := buildMessage(s.from, n)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMessage flattens the subject to one line; addresses are validated by go-mail.
func buildMessage(from string, n domain.Notification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid sender: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient: %w", err)
	}
	msg.Subject(singleLine(n.Subject))
	msg.SetBodyString(gomail.TypeTextPlain, n.Body)
	return msg, nil
}

func singleLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}
