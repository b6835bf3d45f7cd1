package otp

import (
	"context"
	"errors"
	"fmt"

	"github.com/hungle-ag/task-manager-server/internal/accesscode"
	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	auditdomain "github.com/hungle-ag/task-manager-server/internal/audit/domain"
	"github.com/hungle-ag/task-manager-server/internal/policy/engine"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// IssueRequest asks for a passcode to be sent to Identifier over Channel.
type IssueRequest struct {
	Identifier string
	Channel    accesscodedomain.Channel
	// Resend skips the pre-existing staff check done on a first email login.
	Resend bool
}

// IssueResult identifies the issued access code. Code is set only in dev OTP mode.
type IssueResult struct {
	AccessCodeID string
	Identifier   string
	Code         string
}

// Issue generates, stores and delivers a passcode.
//
// It fails with ErrRateLimited while a live code exists for the same identifier, role and channel,
// with ErrUserNotFound when a first email login names an unknown staff member, and with
// ErrDeliveryFailed when sending fails. The stored code is not rolled back on delivery failure.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	identifier := normalizeIdentifier(req.Channel, req.Identifier)
	if err := validateIdentifier(req.Channel, identifier); err != nil {
		return nil, err
	}
	binding, err := s.bindingFor(ctx, req.Channel)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownChannel) {
			return nil, invalidField("channel", "Unsupported channel")
		}
		return nil, fmt.Errorf("evaluate channel policy: %w", err)
	}
	role := binding.Role
	channel := string(req.Channel)

	if req.Channel == accesscodedomain.ChannelEmail && !req.Resend {
		u, err := s.users.GetByEmailAndRole(ctx, identifier, role)
		if err != nil {
			return nil, fmt.Errorf("lookup staff user: %w", err)
		}
		if u == nil {
			s.metrics.Failed(ctx, channel, reasonUserNotFound)
			return nil, ErrUserNotFound
		}
	}

	locked, err := s.acquireLock(ctx, identifier, role, req.Channel)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, s.throttled(ctx, channel, identifier)
	}

	live, err := s.guard.HasLiveCode(ctx, identifier, role, req.Channel)
	if err != nil {
		s.releaseLock(ctx, identifier, role, req.Channel)
		return nil, err
	}
	if live {
		return nil, s.throttled(ctx, channel, identifier)
	}

	code, err := accesscode.GenerateCode()
	if err != nil {
		s.releaseLock(ctx, identifier, role, req.Channel)
		return nil, fmt.Errorf("generate code: %w", err)
	}
	ac := &accesscodedomain.AccessCode{
		ID:         accesscode.NewID(),
		Identifier: identifier,
		Channel:    req.Channel,
		Role:       role,
		CodeHash:   accesscode.HashCode(code),
		IsUsed:     false,
		CreatedAt:  s.now(),
	}
	if err := s.codes.Create(ctx, ac); err != nil {
		s.releaseLock(ctx, identifier, role, req.Channel)
		return nil, err
	}

	meta := map[string]string{"access_code_id": ac.ID, "channel": channel, auditdomain.MetaIdentifier: identifier}
	if err := s.dispatcher.Deliver(ctx, req.Channel, identifier, code); err != nil {
		s.logger.Error().Err(err).Str("access_code_id", ac.ID).Str("channel", channel).Msg("passcode stored but not delivered")
		s.metrics.Failed(ctx, channel, reasonDelivery)
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	res := &IssueResult{AccessCodeID: ac.ID, Identifier: identifier}
	if s.devOTP != nil {
		s.devOTP.Put(ctx, ac.ID, code, ac.CreatedAt.Add(s.ttl))
		res.Code = code
	}
	s.metrics.Issued(ctx, channel)
	s.audit(ctx, "", auditdomain.ActionOTPIssued, auditdomain.ResourceAccessCode, meta)
	s.logger.Info().Str("access_code_id", ac.ID).Str("channel", channel).Bool("resend", req.Resend).Msg("passcode issued")
	return res, nil
}

func (s *Service) throttled(ctx context.Context, channel, identifier string) error {
	s.metrics.Throttled(ctx, channel)
	s.audit(ctx, "", auditdomain.ActionOTPThrottled, auditdomain.ResourceAccessCode,
		map[string]string{"channel": channel, auditdomain.MetaIdentifier: identifier})
	return ErrRateLimited
}

// acquireLock takes the issuance lock when one is configured. Lock errors follow the throttle's fail-open setting.
func (s *Service) acquireLock(ctx context.Context, identifier string, role userdomain.Role, channel accesscodedomain.Channel) (bool, error) {
	if s.lock == nil {
		return true, nil
	}
	ok, err := s.lock.Acquire(ctx, identifier, string(role), string(channel), s.ttl)
	if err != nil {
		if s.failOpen {
			s.logger.Error().Err(err).Str("channel", string(channel)).Msg("issue lock unavailable, allowing issuance")
			return true, nil
		}
		return false, fmt.Errorf("issue lock: %w", err)
	}
	return ok, nil
}

func (s *Service) releaseLock(ctx context.Context, identifier string, role userdomain.Role, channel accesscodedomain.Channel) {
	if s.lock == nil {
		return
	}
	if err := s.lock.Release(ctx, identifier, string(role), string(channel)); err != nil {
		s.logger.Warn().Err(err).Str("channel", string(channel)).Msg("issue lock release failed")
	}
}
