package relay

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// ErrNoCredentials is returned when the SMTP relay has no login configured.
var ErrNoCredentials = errors.New("SMTP credentials not configured")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers payloads straight to the owner's inbox over SMTP.
type Mailer struct {
	cfg      config.SMTP
	log      *zap.Logger
	sendMail sendMailFunc
}

// NewMailer returns an SMTP relay. Mail goes to cfg.To, or to the login
// address when no recipient is set.
func NewMailer(cfg config.SMTP, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.To == "" {
		cfg.To = cfg.User
	}
	return &Mailer{cfg: cfg, log: log, sendMail: smtp.SendMail}
}

// Send mails one message. SMTP has no per-field validation, so every
// failure is a transport error.
func (m *Mailer) Send(ctx context.Context, p contact.Payload) error {
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return &contact.TransportError{Err: ErrNoCredentials}
	}
	if err := ctx.Err(); err != nil {
		return &contact.TransportError{Err: err}
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := m.sendMail(addr, auth, m.cfg.User, []string{m.cfg.To}, m.compose(p)); err != nil {
		m.log.Error("sending contact email", zap.String("smtp", addr), zap.Error(err))
		return &contact.TransportError{Err: err}
	}
	m.log.Info("contact email sent", zap.String("from", headerSafe(p.Email)))
	return nil
}

func (m *Mailer) compose(p contact.Payload) []byte {
	name := headerSafe(p.Name)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, p.Name, p.Email, p.Message)

	return []byte("To: " + m.cfg.To + "\r\n" +
		"Subject: Portfolio Contact: " + name + "\r\n" +
		"From: " + m.cfg.User + "\r\n" +
		"Reply-To: " + headerSafe(p.Email) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

// headerSafe keeps visitor input from adding header lines.
func headerSafe(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
