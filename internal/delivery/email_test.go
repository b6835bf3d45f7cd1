package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func newTestEmailSender(d mailDialer) *EmailSender {
	s := NewEmailSender(EmailConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}, 2*time.Minute)
	s.dialer = d
	return s
}

func TestEmailSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := newTestEmailSender(d)

	if err := s.Send(context.Background(), "staff@example.com", "482913"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "staff@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "no-reply@example.com" {
		t.Errorf("From = %v", got)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), "482913") {
		t.Error("message body does not contain the code")
	}
	if !strings.Contains(buf.String(), "2 minutes") {
		t.Error("message body does not mention the lifetime")
	}
}

func TestEmailSender_Errors(t *testing.T) {
	dialErr := errors.New("connection refused")
	s := newTestEmailSender(&fakeDialer{err: dialErr})
	if err := s.Send(context.Background(), "staff@example.com", "482913"); !errors.Is(err, dialErr) {
		t.Errorf("dial failure: got %v, want wrapped %v", err, dialErr)
	}

	s = newTestEmailSender(&fakeDialer{})
	if err := s.Send(context.Background(), "  ", "482913"); err == nil {
		t.Error("empty recipient: want error")
	}

	s.from = ""
	if err := s.Send(context.Background(), "staff@example.com", "482913"); err == nil {
		t.Error("missing from: want error")
	}
}

func TestFormatTTL(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Minute, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatTTL(tt.in); got != tt.want {
			t.Errorf("formatTTL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
