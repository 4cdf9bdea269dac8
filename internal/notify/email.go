package notify

import (
	"context"
	"fmt"
	"strings"

	mail "github.com/wneessen/go-mail"

	"telewatch/internal/config"
	logx "telewatch/pkg/logx"
)

const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 465
)

// emailNotifier delivers over authenticated SMTP. Sender credentials
// come from the environment; recipients from the destination config.
type emailNotifier struct {
	exec Executor
	log  logx.Logger
}

func (n *emailNotifier) Channel() Channel { return ChannelEmail }

func (n *emailNotifier) Enabled(snap *config.Snapshot) bool {
	return snap.Destinations.Email.Enabled
}

func (n *emailNotifier) Configured(snap *config.Snapshot) bool {
	d := snap.Destinations.Email
	if len(d.Recipients) == 0 {
		return false
	}
	return snap.Creds.EmailAddress != "" && snap.Creds.EmailPassword != ""
}

func (n *emailNotifier) DisplayStatus(snap *config.Snapshot) string {
	d := snap.Destinations.Email
	if !d.Enabled {
		return "(disabled)"
	}
	if len(d.Recipients) == 0 {
		return "(no recipients)"
	}
	if snap.Creds.EmailAddress == "" || snap.Creds.EmailPassword == "" {
		return "(sender credentials missing)"
	}
	if len(d.Recipients) == 1 {
		return d.Recipients[0]
	}
	return fmt.Sprintf("%d recipients", len(d.Recipients))
}

func (n *emailNotifier) Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome {
	d := snap.Destinations.Email
	if snap.Creds.EmailAddress == "" || snap.Creds.EmailPassword == "" {
		n.log.Error("email sender credentials missing (EMAIL_ADDRESS / EMAIL_APP_PASSWORD)")
		return failure(ChannelEmail, 1, "sender credentials not configured")
	}
	if len(d.Recipients) == 0 {
		n.log.Error("email recipients not configured")
		return failure(ChannelEmail, 1, "no recipients configured")
	}

	host := strings.TrimSpace(d.Host)
	if host == "" {
		host = defaultSMTPHost
	}
	port := d.Port
	if port <= 0 {
		port = defaultSMTPPort
	}

	attempts, ok := n.exec.Run(ctx, string(ChannelEmail), func(actx context.Context) error {
		return n.deliver(actx, snap.Creds, host, port, d.Recipients, req)
	})
	if !ok {
		return failure(ChannelEmail, attempts, "email delivery failed")
	}
	n.log.Info("email sent", logx.Int("recipients", len(d.Recipients)))
	return success(ChannelEmail, attempts)
}

func (n *emailNotifier) deliver(ctx context.Context, creds config.Credentials, host string, port int, recipients []string, req Request) error {
	msg := mail.NewMsg()
	if err := msg.From(creds.EmailAddress); err != nil {
		return err
	}
	if err := msg.To(recipients...); err != nil {
		return err
	}
	msg.Subject(emailSubject(req))
	msg.SetBodyString(mail.TypeTextPlain, emailBody(req))

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(creds.EmailAddress),
		mail.WithPassword(creds.EmailPassword),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
