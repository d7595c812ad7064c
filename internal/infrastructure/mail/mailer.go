// Package mail delivers report emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"CatalogSync/internal/config"
	"CatalogSync/internal/ports"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("mail has no recipients")

// Mailer sends messages through an SMTP relay.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

var _ ports.Mailer = (*Mailer)(nil)

// NewMailer stores relay settings; connections are opened per message.
func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Send composes and transmits msg.
func (m *Mailer) Send(ctx context.Context, msg ports.Message) error {
	composed, err := m.compose(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{gomail.WithTLSPolicy(gomail.TLSOpportunistic)}
	if m.port > 0 {
		opts = append(opts, gomail.WithPort(m.port))
	}
	if m.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.username),
			gomail.WithPassword(m.password),
		)
	}

	client, err := gomail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, composed); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *Mailer) compose(msg ports.Message) (*gomail.Msg, error) {
	if len(msg.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	out := gomail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := out.To(msg.Recipients...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	if msg.AttachmentPath != "" {
		out.AttachFile(msg.AttachmentPath, gomail.WithFileName(msg.AttachmentName))
	}
	return out, nil
}
