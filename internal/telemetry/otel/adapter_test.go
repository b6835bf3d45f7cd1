package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/hungle-ag/task-manager-server/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrsOf(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), telemetry.NewIdentityVerified("u1", "staff", "email", false)); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil): %v", err)
	}
	if err := em.Emit(context.Background(), telemetry.NewIdentityVerified("u1", "staff", "email", false)); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := telemetry.NewIdentityVerified("user1", "supervisor", "sms", true)
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.calls != 1 {
		t.Fatalf("Emit calls = %d, want 1", cap.calls)
	}

	var body telemetry.IdentityVerified
	if err := json.Unmarshal(cap.rec.Body().AsBytes(), &body); err != nil {
		t.Fatalf("body is not the JSON event: %v", err)
	}
	if body.UserID != "user1" {
		t.Errorf("body user = %q", body.UserID)
	}

	attrs := attrsOf(cap.rec)
	want := map[string]string{
		"user_id": "user1", "role": "supervisor", "channel": "sms", "event_type": telemetry.EventTypeIdentityVerified,
	}
	for k, v := range want {
		if attrs[k].AsString() != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if !attrs["provisioned"].AsBool() {
		t.Error("provisioned attribute should be true")
	}
	if !cap.rec.Timestamp().Equal(event.CreatedAt) {
		t.Errorf("timestamp = %v, want %v", cap.rec.Timestamp(), event.CreatedAt)
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := &telemetry.IdentityVerified{UserID: "u1"}
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
	attrs := attrsOf(cap.rec)
	if _, ok := attrs["role"]; ok {
		t.Error("empty role should not be set as an attribute")
	}
}
