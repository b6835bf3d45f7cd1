package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hungle-ag/task-manager-server/internal/accesscode"
	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	accesscoderepo "github.com/hungle-ag/task-manager-server/internal/accesscode/repository"
	auditdomain "github.com/hungle-ag/task-manager-server/internal/audit/domain"
	"github.com/hungle-ag/task-manager-server/internal/policy/engine"
	"github.com/hungle-ag/task-manager-server/internal/telemetry"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// VerifyRequest submits a passcode received over Channel for the access code AccessCodeID.
type VerifyRequest struct {
	Identifier   string
	Code         string
	AccessCodeID string
	Channel      accesscodedomain.Channel
}

// VerifyResult holds the authenticated user and the session token.
type VerifyResult struct {
	User      *userdomain.User
	Token     string
	ExpiresAt time.Time
	// Provisioned reports whether the user was created by this verification.
	Provisioned bool
}

// Verify checks a submitted passcode and exchanges it for a session token.
//
// A missing access code fails with ErrAccessCodeNotFound. Any failed validity check (identifier,
// code, channel and role, already used, expired) fails with ErrInvalidOrExpired and mutates nothing.
// On success the code is marked used and every other unused code for the identifier is deleted;
// a failed cleanup is logged and does not fail the verification.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	identifier := normalizeIdentifier(req.Channel, req.Identifier)
	if err := validateIdentifier(req.Channel, identifier); err != nil {
		return nil, err
	}
	if !CodePattern.MatchString(req.Code) {
		return nil, invalidField("otp", "OTP must be a 6-digit number")
	}
	accessCodeID := strings.TrimSpace(req.AccessCodeID)
	if accessCodeID == "" {
		return nil, invalidField("accessCodeId", "Access code ID is required")
	}
	binding, err := s.bindingFor(ctx, req.Channel)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownChannel) {
			return nil, invalidField("channel", "Unsupported channel")
		}
		return nil, fmt.Errorf("evaluate channel policy: %w", err)
	}
	channel := string(req.Channel)

	ac, err := s.codes.GetByID(ctx, accessCodeID)
	if err != nil {
		return nil, err
	}
	if ac == nil {
		s.metrics.Failed(ctx, channel, reasonNotFound)
		return nil, ErrAccessCodeNotFound
	}

	if !s.valid(ac, identifier, req.Code, req.Channel, binding.Role) {
		return nil, s.rejected(ctx, ac)
	}

	if err := s.codes.MarkUsed(ctx, ac.ID); err != nil {
		if errors.Is(err, accesscoderepo.ErrAlreadyUsed) {
			return nil, s.rejected(ctx, ac)
		}
		return nil, err
	}
	if s.devOTP != nil {
		s.devOTP.Delete(ctx, ac.ID)
	}
	s.invalidateSiblings(ctx, ac)

	user, provisioned, err := s.resolveUser(ctx, identifier, binding)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.Failed(ctx, channel, reasonUserNotFound)
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.IssueSession(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.releaseLock(ctx, identifier, binding.Role, req.Channel)
	s.metrics.Verified(ctx, channel, provisioned)
	meta := map[string]string{"access_code_id": ac.ID, "channel": channel}
	if provisioned {
		s.audit(ctx, user.ID, auditdomain.ActionUserProvisioned, auditdomain.ResourceUser, meta)
	}
	s.audit(ctx, user.ID, auditdomain.ActionOTPVerified, auditdomain.ResourceAccessCode, meta)
	telemetry.EmitAsync(s.events, s.logger, telemetry.NewIdentityVerified(user.ID, string(user.Role), channel, provisioned))
	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Bool("provisioned", provisioned).Msg("passcode verified")

	return &VerifyResult{
		User:        user,
		Token:       token,
		ExpiresAt:   expiresAt,
		Provisioned: provisioned,
	}, nil
}

// valid evaluates every check without short-circuiting on the code comparison.
func (s *Service) valid(ac *accesscodedomain.AccessCode, identifier, code string, channel accesscodedomain.Channel, role userdomain.Role) bool {
	codeOK := accesscode.CodeEqual(code, ac.CodeHash)
	return codeOK &&
		ac.Identifier == identifier &&
		ac.Channel == channel &&
		ac.Role == role &&
		ac.IsLive(s.now(), s.ttl)
}

func (s *Service) rejected(ctx context.Context, ac *accesscodedomain.AccessCode) error {
	s.metrics.Failed(ctx, string(ac.Channel), reasonInvalidOrExpired)
	s.audit(ctx, "", auditdomain.ActionOTPVerifyFailed, auditdomain.ResourceAccessCode,
		map[string]string{"access_code_id": ac.ID, "channel": string(ac.Channel)})
	return ErrInvalidOrExpired
}

// invalidateSiblings deletes every other unused code for the identifier, across roles and channels.
// The list read is not isolated from the delete; a code created in between expires by TTL.
func (s *Service) invalidateSiblings(ctx context.Context, verified *accesscodedomain.AccessCode) {
	list, err := s.codes.ListUnused(ctx, accesscoderepo.Filter{Identifier: verified.Identifier})
	if err != nil {
		s.logger.Warn().Err(err).Str("access_code_id", verified.ID).Msg("sibling lookup failed")
		return
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		if c.ID != verified.ID {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := s.codes.DeleteBatch(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Str("access_code_id", verified.ID).Int("siblings", len(ids)).Msg("sibling cleanup failed")
		return
	}
	if s.devOTP != nil {
		for _, id := range ids {
			s.devOTP.Delete(ctx, id)
		}
	}
}

// resolveUser finds the identity for identifier. Roles bound with Provision are created when absent;
// other roles must pre-exist.
func (s *Service) resolveUser(ctx context.Context, identifier string, binding engine.Binding) (*userdomain.User, bool, error) {
	var (
		user *userdomain.User
		err  error
	)
	switch binding.Role {
	case userdomain.RoleSupervisor:
		user, err = s.users.GetByPhoneAndRole(ctx, identifier, binding.Role)
	default:
		user, err = s.users.GetByEmailAndRole(ctx, identifier, binding.Role)
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}
	if user != nil {
		if !user.Verified {
			if err := s.users.MarkVerified(ctx, user.ID); err != nil {
				return nil, false, err
			}
			user.Verified = true
		}
		return user, false, nil
	}
	if !binding.Provision || binding.Role != userdomain.RoleSupervisor {
		return nil, false, ErrUserNotFound
	}

	now := s.now()
	stored, created, err := s.users.CreateIfAbsentByPhone(ctx, &userdomain.User{
		ID:        accesscode.NewID(),
		Phone:     identifier,
		Role:      binding.Role,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}
