// Package smssvc sends text messages through Twilio. When no Twilio account
// is configured the sender reports itself unsupported instead of faking
// successful sends.
package smssvc

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/notification"
)

type twilioService struct {
	client *twilio.RestClient
	from   string
	logger core.Logger
}

var _ notification.SMSSender = (*twilioService)(nil)

func NewTwilioService(conf *core.Config, logger core.Logger) *twilioService {
	return &twilioService{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: conf.SMS.TwilioAccountSID,
			Password: conf.SMS.TwilioAuthToken,
		}),
		from:   conf.SMS.TwilioFromNumber,
		logger: logger,
	}
}

func (svc *twilioService) Send(_ context.Context, to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(svc.from)
	params.SetBody(body)

	if _, err := svc.client.Api.CreateMessage(params); err != nil {
		return errors.Wrap(err, "sending sms")
	}
	svc.logger.Debug(fmt.Sprintf("sms sent to %s", to))
	return nil
}

type disabledService struct{}

var _ notification.SMSSender = disabledService{}

// NewDisabledService is the sender used when Twilio credentials are absent.
func NewDisabledService() notification.SMSSender {
	return disabledService{}
}

func (disabledService) Send(context.Context, string, string) error {
	return notification.ErrSMSUnsupported
}

// NewService picks the Twilio sender when credentials are configured and the
// disabled sender otherwise.
func NewService(conf *core.Config, logger core.Logger) notification.SMSSender {
	if conf.SMS.TwilioAccountSID == "" || conf.SMS.TwilioAuthToken == "" || conf.SMS.TwilioFromNumber == "" {
		return NewDisabledService()
	}
	return NewTwilioService(conf, logger)
}
