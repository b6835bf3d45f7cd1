package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
)

func TestDispatcher_Deliver(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	var gotTo, gotCode string
	d.Register(domain.ChannelSMS, SenderFunc(func(_ context.Context, to, code string) error {
		gotTo, gotCode = to, code
		return nil
	}))

	if err := d.Deliver(context.Background(), domain.ChannelSMS, "+84901234567", "123456"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotTo != "+84901234567" || gotCode != "123456" {
		t.Errorf("sender got (%q, %q)", gotTo, gotCode)
	}
}

func TestDispatcher_NoSender(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	err := d.Deliver(context.Background(), domain.ChannelEmail, "a@b.co", "123456")
	if !errors.Is(err, ErrNoSender) {
		t.Fatalf("Deliver: got %v, want ErrNoSender", err)
	}
}

func TestDispatcher_SenderError(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	sendErr := errors.New("smtp down")
	d.Register(domain.ChannelEmail, SenderFunc(func(context.Context, string, string) error { return sendErr }))
	if err := d.Deliver(context.Background(), domain.ChannelEmail, "a@b.co", "123456"); !errors.Is(err, sendErr) {
		t.Fatalf("Deliver: got %v, want %v", err, sendErr)
	}
}

func TestLogSender(t *testing.T) {
	s := LogSender{Logger: zerolog.Nop(), Channel: domain.ChannelSMS}
	if err := s.Send(context.Background(), "+84901234567", "123456"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
