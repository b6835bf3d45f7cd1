package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTPMetrics records passcode issuance and verification counters.
type OTPMetrics struct {
	issued    metric.Int64Counter
	throttled metric.Int64Counter
	verified  metric.Int64Counter
	failed    metric.Int64Counter
}

// NewOTPMetrics registers the OTP counters on a meter from mp.
func NewOTPMetrics(mp metric.MeterProvider) (*OTPMetrics, error) {
	meter := mp.Meter(instrumentationName)
	issued, err := meter.Int64Counter("otp.issued", metric.WithDescription("Passcodes issued and delivered."))
	if err != nil {
		return nil, err
	}
	throttled, err := meter.Int64Counter("otp.throttled", metric.WithDescription("Issuance requests rejected by the throttle."))
	if err != nil {
		return nil, err
	}
	verified, err := meter.Int64Counter("otp.verified", metric.WithDescription("Successful verifications."))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("otp.failed", metric.WithDescription("Failed issuance or verification attempts."))
	if err != nil {
		return nil, err
	}
	return &OTPMetrics{issued: issued, throttled: throttled, verified: verified, failed: failed}, nil
}

func (m *OTPMetrics) Issued(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (m *OTPMetrics) Throttled(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.throttled.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (m *OTPMetrics) Verified(ctx context.Context, channel string, provisioned bool) {
	if m == nil {
		return
	}
	m.verified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("provisioned", provisioned),
	))
}

// Failed counts a failure; reason is a short fixed label such as "invalid_or_expired" or "delivery".
func (m *OTPMetrics) Failed(ctx context.Context, channel, reason string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("reason", reason),
	))
}
