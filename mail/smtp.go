// Package mail provides the SMTP Mailer implementation. The engine only
// sees the Mailer interface; swap in anything else for testing or for a
// hosted delivery provider.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig locates and authenticates against the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender. Defaults to Username.
	From string
}

// SMTPMailer delivers plain-text mail over SMTP with PLAIN auth.
type SMTPMailer struct {
	cfg SMTPConfig
	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

// Send implements the engine's Mailer interface. The message is assembled
// with RFC 5322 CRLF line endings and a UTF-8 plain-text body.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
