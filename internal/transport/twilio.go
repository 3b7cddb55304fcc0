package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
)

// TwilioTransport sends WhatsApp messages through the Twilio REST API.
type TwilioTransport struct {
	client *twilio.RestClient
	from   string
	logger *zap.Logger
}

// NewTwilioTransport creates a transport from the Twilio configuration.
// The from number is stored in "whatsapp:+..." wire format.
func NewTwilioTransport(cfg *config.TwilioConfig, logger *zap.Logger) (*TwilioTransport, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token must be provided")
	}

	from := Normalize(cfg.FromNumber)
	if from == "" {
		return nil, fmt.Errorf("invalid twilio from number %q", cfg.FromNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioTransport{
		client: client,
		from:   "whatsapp:" + from,
		logger: logger,
	}, nil
}

// Send delivers a WhatsApp message and returns the Twilio message SID.
func (t *TwilioTransport) Send(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.client.Api.CreateMessage(params)
	if err != nil {
		t.logger.Error("Twilio send failed",
			zap.String("to", to),
			zap.Error(err))
		return "", &DeliveryError{To: to, Err: err}
	}

	if msg.Sid == nil || *msg.Sid == "" {
		return "", &DeliveryError{To: to, Err: errors.New("twilio returned no message SID")}
	}

	t.logger.Debug("Twilio message sent",
		zap.String("to", to),
		zap.String("sid", *msg.Sid))

	return *msg.Sid, nil
}
