package notify

import (
	"context"
	"strings"

	"github.com/twilio/twilio-go"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"

	"telewatch/internal/config"
	logx "telewatch/pkg/logx"
)

// smsNotifier delivers over the Twilio messaging API. Account
// credentials and the sending number come from the environment.
type smsNotifier struct {
	exec Executor
	log  logx.Logger
}

func (n *smsNotifier) Channel() Channel { return ChannelSMS }

func (n *smsNotifier) Enabled(snap *config.Snapshot) bool {
	return snap.Destinations.SMS.Enabled
}

func (n *smsNotifier) Configured(snap *config.Snapshot) bool {
	if strings.TrimSpace(snap.Destinations.SMS.Phone) == "" {
		return false
	}
	c := snap.Creds
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func (n *smsNotifier) DisplayStatus(snap *config.Snapshot) string {
	d := snap.Destinations.SMS
	if !d.Enabled {
		return "(disabled)"
	}
	phone := strings.TrimSpace(d.Phone)
	if phone == "" {
		return "(no recipient number)"
	}
	c := snap.Creds
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFrom == "" {
		return "(twilio credentials missing)"
	}
	return phone
}

func (n *smsNotifier) Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome {
	phone := strings.TrimSpace(snap.Destinations.SMS.Phone)
	creds := snap.Creds
	if creds.TwilioAccountSID == "" || creds.TwilioAuthToken == "" || creds.TwilioFrom == "" {
		n.log.Error("twilio credentials missing (TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN / TWILIO_PHONE_NUMBER)")
		return failure(ChannelSMS, 1, "twilio credentials not configured")
	}
	if phone == "" {
		n.log.Error("sms recipient number not configured")
		return failure(ChannelSMS, 1, "no recipient number configured")
	}

	body := smsBody(req)

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.TwilioAccountSID,
		Password: creds.TwilioAuthToken,
	})

	attempts, ok := n.exec.Run(ctx, string(ChannelSMS), func(actx context.Context) error {
		params := &twapi.CreateMessageParams{}
		params.SetTo(phone)
		params.SetFrom(creds.TwilioFrom)
		params.SetBody(body)
		_, err := client.Api.CreateMessage(params)
		return err
	})
	if !ok {
		return failure(ChannelSMS, attempts, "sms delivery failed")
	}
	n.log.Info("sms sent", logx.String("to", phone))
	return success(ChannelSMS, attempts)
}
