package delivery

import (
	"context"
	"fmt"
	"net"
	"time"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPProvider delivers email actions over a direct SMTP connection.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	fromName string
}

// NewSMTPProvider creates an email provider from SMTP configuration.
func NewSMTPProvider(cfg config.SMTPConfig) *SMTPProvider {
	return &SMTPProvider{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
		fromName: cfg.GetSMTPFromName(),
	}
}

// Channel returns the email channel.
func (p *SMTPProvider) Channel() domain.Channel {
	return domain.ChannelEmail
}

// Send delivers one email. The from address is derived from the granted
// sending domain so each tenant's mail leaves through its own identity.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.FromFormat(p.fromName, "outreach@"+msg.Via); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return fmt.Errorf("smtp to: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	client, err := gomail.NewClient(p.host,
		gomail.WithPort(p.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(p.username),
		gomail.WithPassword(p.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
