// Package otp issues and verifies one-time passcodes: staff log in over email, supervisors over SMS.
// A verified passcode is exchanged for a signed session token.
package otp

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	accesscoderepo "github.com/hungle-ag/task-manager-server/internal/accesscode/repository"
	"github.com/hungle-ag/task-manager-server/internal/audit"
	"github.com/hungle-ag/task-manager-server/internal/devotp"
	"github.com/hungle-ag/task-manager-server/internal/policy/engine"
	"github.com/hungle-ag/task-manager-server/internal/telemetry"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// UserDirectory is the minimal user repository needed by the OTP service.
type UserDirectory interface {
	GetByEmailAndRole(ctx context.Context, email string, role userdomain.Role) (*userdomain.User, error)
	GetByPhoneAndRole(ctx context.Context, phone string, role userdomain.Role) (*userdomain.User, error)
	CreateIfAbsentByPhone(ctx context.Context, u *userdomain.User) (*userdomain.User, bool, error)
	MarkVerified(ctx context.Context, id string) error
}

// Dispatcher sends a passcode over a channel.
type Dispatcher interface {
	Deliver(ctx context.Context, channel accesscodedomain.Channel, to, code string) error
}

// TokenIssuer signs session tokens carrying the user id and role.
type TokenIssuer interface {
	IssueSession(userID, role string) (token string, expiresAt time.Time, err error)
}

// IssueLock serializes issuance per (identifier, role, channel).
type IssueLock interface {
	Acquire(ctx context.Context, identifier, role, channel string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, identifier, role, channel string) error
}

// Metrics records OTP counters.
type Metrics interface {
	Issued(ctx context.Context, channel string)
	Throttled(ctx context.Context, channel string)
	Verified(ctx context.Context, channel string, provisioned bool)
	Failed(ctx context.Context, channel, reason string)
}

// Failure reasons passed to Metrics.Failed.
const (
	reasonDelivery         = "delivery"
	reasonNotFound         = "access_code_not_found"
	reasonInvalidOrExpired = "invalid_or_expired"
	reasonUserNotFound     = "user_not_found"
)

// Service implements passcode issuance and verification.
type Service struct {
	codes      accesscoderepo.Repository
	users      UserDirectory
	dispatcher Dispatcher
	tokens     TokenIssuer
	logger     zerolog.Logger

	ttl      time.Duration
	failOpen bool
	guard    *Guard
	now      func() time.Time

	policy  engine.Evaluator
	lock    IssueLock
	devOTP  devotp.Store
	events  telemetry.EventEmitter
	auditor audit.AuditLogger
	metrics Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the passcode lifetime (default 120s).
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithThrottleFailOpen sets whether a throttle lookup failure allows issuance (default true).
func WithThrottleFailOpen(failOpen bool) Option {
	return func(s *Service) { s.failOpen = failOpen }
}

// WithPolicy sets the channel policy (default engine.StaticEvaluator).
func WithPolicy(p engine.Evaluator) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithIssueLock makes the throttle atomic across instances.
func WithIssueLock(l IssueLock) Option {
	return func(s *Service) { s.lock = l }
}

// WithDevOTP enables dev OTP mode: issued codes are returned to the caller and kept in store.
func WithDevOTP(store devotp.Store) Option {
	return func(s *Service) { s.devOTP = store }
}

// WithEvents publishes an IdentityVerified event after each successful verification.
func WithEvents(e telemetry.EventEmitter) Option {
	return func(s *Service) { s.events = e }
}

// WithAuditLogger records issuance and verification outcomes.
func WithAuditLogger(a audit.AuditLogger) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMetrics records OTP counters.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a Service with the given dependencies.
func NewService(
	codes accesscoderepo.Repository,
	users UserDirectory,
	dispatcher Dispatcher,
	tokens TokenIssuer,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		codes:      codes,
		users:      users,
		dispatcher: dispatcher,
		tokens:     tokens,
		logger:     logger.With().Str("component", "otp").Logger(),
		ttl:        accesscodedomain.DefaultTTL,
		failOpen:   true,
		now:        func() time.Time { return time.Now().UTC() },
		policy:     engine.StaticEvaluator{},
		metrics:    nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = NewGuard(codes, s.ttl, s.failOpen, s.logger)
	s.guard.now = s.now
	return s
}

// bindingFor evaluates the channel policy. Email always authenticates staff without provisioning and
// sms always authenticates self-provisioning supervisors; a policy that says otherwise is ignored.
func (s *Service) bindingFor(ctx context.Context, channel accesscodedomain.Channel) (engine.Binding, error) {
	fixed, err := engine.StaticBinding(channel)
	if err != nil {
		return engine.Binding{}, err
	}
	got, err := s.policy.Evaluate(ctx, channel)
	if err != nil {
		return engine.Binding{}, err
	}
	if got != fixed {
		s.logger.Warn().Str("channel", string(channel)).Str("role", string(got.Role)).Bool("provision", got.Provision).
			Msg("channel policy rebinds a fixed channel, using built-in binding")
		return fixed, nil
	}
	return got, nil
}

// TTL returns the passcode lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// DevMode reports whether issued codes are returned to the caller.
func (s *Service) DevMode() bool { return s.devOTP != nil }

func (s *Service) audit(ctx context.Context, userID, action, resource string, meta map[string]string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, userID, action, resource, meta)
}

// normalizeIdentifier trims whitespace and lowercases email addresses.
func normalizeIdentifier(channel accesscodedomain.Channel, identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if channel == accesscodedomain.ChannelEmail {
		identifier = strings.ToLower(identifier)
	}
	return identifier
}

type nopMetrics struct{}

func (nopMetrics) Issued(context.Context, string)         {}
func (nopMetrics) Throttled(context.Context, string)      {}
func (nopMetrics) Verified(context.Context, string, bool) {}
func (nopMetrics) Failed(context.Context, string, string) {}
