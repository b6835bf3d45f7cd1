// Package telemetry defines the identity-verified event published after a successful OTP verification
// and the best-effort emit path shared by the Kafka producer and the OTel log emitter.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// EventTypeIdentityVerified is the event_type of IdentityVerified records.
const EventTypeIdentityVerified = "identity_verified"

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// IdentityVerified is published once per successful verification.
type IdentityVerified struct {
	EventType   string    `json:"eventType"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	Channel     string    `json:"channel"`
	Provisioned bool      `json:"provisioned"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewIdentityVerified returns an event stamped with the current time.
func NewIdentityVerified(userID, role, channel string, provisioned bool) *IdentityVerified {
	return &IdentityVerified{
		EventType:   EventTypeIdentityVerified,
		UserID:      userID,
		Role:        role,
		Channel:     channel,
		Provisioned: provisioned,
		CreatedAt:   time.Now().UTC(),
	}
}

// EventEmitter emits identity events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *IdentityVerified) error
}

// Fanout emits each event to every non-nil emitter and joins their errors.
type Fanout []EventEmitter

// Emit calls Emit on every emitter, continuing past failures.
func (f Fanout) Emit(ctx context.Context, event *IdentityVerified) error {
	var errs []error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync then returns immediately without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not abort the emit.
func EmitAsync(emitter EventEmitter, logger zerolog.Logger, event *IdentityVerified) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			logger.Warn().Err(err).Str("event_type", event.EventType).Msg("telemetry: async emit failed")
		}
	}()
}
