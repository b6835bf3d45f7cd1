package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*IdentityVerified
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *IdentityVerified) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		close(m.done)
	}
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestNewIdentityVerified(t *testing.T) {
	e := NewIdentityVerified("u1", "supervisor", "sms", true)
	if e.EventType != EventTypeIdentityVerified {
		t.Errorf("EventType = %q", e.EventType)
	}
	if e.UserID != "u1" || e.Role != "supervisor" || e.Channel != "sms" || !e.Provisioned {
		t.Errorf("event = %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestEmitAsync_NilArguments(t *testing.T) {
	EmitAsync(nil, zerolog.Nop(), NewIdentityVerified("u1", "staff", "email", false))

	m := &mockEventEmitter{}
	EmitAsync(m, zerolog.Nop(), nil)
	time.Sleep(20 * time.Millisecond)
	if m.count() != 0 {
		t.Errorf("emitted %d events for nil event", m.count())
	}
}

func TestEmitAsync_Emits(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{})}
	EmitAsync(m, zerolog.Nop(), NewIdentityVerified("u1", "staff", "email", false))
	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("event was not emitted")
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	m := &mockEventEmitter{emitErr: errors.New("kafka down"), done: make(chan struct{})}
	EmitAsync(m, zerolog.Nop(), NewIdentityVerified("u1", "staff", "email", false))
	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("event was not emitted")
	}
}

func TestFanout_Emit(t *testing.T) {
	a := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("boom")}
	b := &mockEventEmitter{}
	f := Fanout{a, nil, failing, b}

	err := f.Emit(context.Background(), NewIdentityVerified("u1", "staff", "email", false))
	if err == nil || err.Error() != "boom" {
		t.Errorf("Fanout error = %v, want boom", err)
	}
	if a.count() != 1 || b.count() != 1 || failing.count() != 1 {
		t.Errorf("counts = %d %d %d, want 1 1 1", a.count(), failing.count(), b.count())
	}
	if err := (Fanout{}).Emit(context.Background(), nil); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
