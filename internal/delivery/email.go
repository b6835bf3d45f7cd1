package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// mailDialer is the part of *gomail.Dialer the email sender uses.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig holds SMTP settings for passcode emails.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// EmailSender delivers passcodes by SMTP.
type EmailSender struct {
	from   string
	ttl    time.Duration
	dialer mailDialer
}

// NewEmailSender returns a sender for cfg. ttl is printed in the message body.
func NewEmailSender(cfg EmailConfig, ttl time.Duration) *EmailSender {
	return &EmailSender{
		from:   cfg.From,
		ttl:    ttl,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
	}
}

// Send emails the code to the given address.
func (s *EmailSender) Send(ctx context.Context, to, code string) error {
	if s.from == "" {
		return fmt.Errorf("email: sender address not configured")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("email: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your login code")
	m.SetBody("text/plain", fmt.Sprintf("Your one-time login code is %s. It expires in %s.", code, formatTTL(s.ttl)))
	m.AddAlternative("text/html", fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <p>Your one-time login code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>It expires in %s. If you did not request it, ignore this email.</p>
  </div>
</body>
</html>`, code, formatTTL(s.ttl)))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func formatTTL(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return d.String()
}
