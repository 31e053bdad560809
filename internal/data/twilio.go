package data

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

// TwilioConfig contains Twilio account configuration
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string // sender number in E.164
}

// messageCreator is the subset of the Twilio REST API used here
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// twilioRepo implements the message repository over Twilio SMS
type twilioRepo struct {
	api  messageCreator
	from string
}

// NewTwilioRepo creates a new Twilio repository
func NewTwilioRepo(cfg TwilioConfig) repo.MessageRepo {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &twilioRepo{api: client.Api, from: cfg.PhoneNumber}
}

// SendText sends an SMS to the given phone number
func (r *twilioRepo) SendText(ctx context.Context, to, text string) error {
	// The Twilio client does not take a context; honor cancellation before the call
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(r.from)
	params.SetBody(text)

	resp, err := r.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp != nil && resp.ErrorMessage != nil {
		return fmt.Errorf("send sms: %s", *resp.ErrorMessage)
	}
	return nil
}
