// Package smtp implements mail.Sender over an SMTP relay.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"

	gomail "github.com/go-mail/mail"

	"github.com/MrEthical07/authbridge/mail"
)

// TLSMode selects how the dialer negotiates transport security.
type TLSMode string

const (
	// TLSAuto negotiates STARTTLS when the server offers it.
	TLSAuto TLSMode = "auto"
	// TLSImplicit dials with TLS from the first byte (SMTPS).
	TLSImplicit TLSMode = "ssl"
	// TLSNone sends in the clear. Development only.
	TLSNone TLSMode = "none"
)

// Config holds relay coordinates and credentials.
type Config struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLSMode  TLSMode

	// InsecureSkipVerify disables certificate verification. Development only.
	InsecureSkipVerify bool
}

// Sender delivers messages through one SMTP relay.
type Sender struct {
	cfg    Config
	dialer *gomail.Dialer
}

func New(cfg Config) (*Sender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp: host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp: from address is required")
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSAuto
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.TLSMode == TLSImplicit {
		d.SSL = true
	}

	return &Sender{cfg: cfg, dialer: d}, nil
}

// Send builds a multipart/alternative message when both bodies are present
// and delivers it synchronously. The go-mail dialer has no context plumbing,
// so ctx only gates the attempt up front.
func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		if msg.TextBody == "" {
			m.SetBody("text/html", msg.HTMLBody)
		} else {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %v", mail.ErrSendFailed, err)
	}
	return nil
}
