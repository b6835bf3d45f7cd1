// Package delivery sends issued passcodes to their recipients over the channel they were requested on.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
)

// ErrNoSender is returned when no sender is registered for a channel.
var ErrNoSender = errors.New("delivery: no sender for channel")

// Sender delivers a passcode to one recipient (an email address or a phone number).
type Sender interface {
	Send(ctx context.Context, to, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, code string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, code string) error { return f(ctx, to, code) }

// Dispatcher routes a passcode to the sender registered for its channel.
type Dispatcher struct {
	senders map[domain.Channel]Sender
	logger  zerolog.Logger
}

// NewDispatcher returns an empty dispatcher. Register senders before use.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: make(map[domain.Channel]Sender),
		logger:  logger.With().Str("component", "delivery").Logger(),
	}
}

// Register binds s to channel ch, replacing any previous sender.
func (d *Dispatcher) Register(ch domain.Channel, s Sender) {
	d.senders[ch] = s
}

// Deliver sends code to the recipient over ch. The code is never logged.
func (d *Dispatcher) Deliver(ctx context.Context, ch domain.Channel, to, code string) error {
	s, ok := d.senders[ch]
	if !ok || s == nil {
		return fmt.Errorf("%w: %s", ErrNoSender, ch)
	}
	if err := s.Send(ctx, to, code); err != nil {
		d.logger.Warn().Err(err).Str("channel", string(ch)).Msg("passcode delivery failed")
		return err
	}
	d.logger.Debug().Str("channel", string(ch)).Msg("passcode delivered")
	return nil
}

// LogSender is a development sender that records the delivery without sending anything.
// Register it only in dev OTP mode, where the code is exposed through the API instead.
type LogSender struct {
	Logger  zerolog.Logger
	Channel domain.Channel
}

// Send logs the recipient and returns nil.
func (s LogSender) Send(_ context.Context, to, _ string) error {
	s.Logger.Info().Str("channel", string(s.Channel)).Str("to", to).Msg("passcode delivery skipped: no provider configured")
	return nil
}
