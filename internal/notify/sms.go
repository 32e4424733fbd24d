package notify

import (
	"context"
	"fmt"

	"salonbook/internal/config"
	"salonbook/internal/domain"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSNotifier texts the owner's phone through Twilio. Only the subject is
// sent; SMS bodies are kept short.
type SMSNotifier struct {
	api  messageCreator
	from string
	to   string
}

func NewSMSNotifier(cfg config.TwilioConfig) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   cfg.AccountSID,
		Password:   cfg.AuthToken,
		AccountSid: cfg.AccountSID,
	})
	return &SMSNotifier{api: client.Api, from: cfg.FromNumber, to: cfg.ToNumber}
}

func (s *SMSNotifier) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(n.Subject)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
