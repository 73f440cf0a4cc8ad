package smtpmailer

import (
	"context"

	gomail "github.com/wneessen/go-mail"
	"github.com/pkg/errors"
)

// Mailer sends notification email over SMTP.
type Mailer struct {
	client *gomail.Client
	from   string
}

func New(host string, port int, username, password, from string) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}
	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}
	return &Mailer{client: client, from: from}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, "set from")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "set to")
	}
	msg.Subject(subject)
	if textBody != "" {
		msg.SetBodyString(gomail.TypeTextPlain, textBody)
		msg.AddAlternativeString(gomail.TypeTextHTML, htmlBody)
	} else {
		msg.SetBodyString(gomail.TypeTextHTML, htmlBody)
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}
