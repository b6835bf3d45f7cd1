package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	accesscoderepo "github.com/hungle-ag/task-manager-server/internal/accesscode/repository"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// Guard reports whether a live code is outstanding for an (identifier, role, channel) triple.
//
// The check and the following insert are not atomic: two concurrent requests can both see no live
// code and both issue one. Configure an IssueLock on the Service to close that gap.
type Guard struct {
	codes    accesscoderepo.Repository
	ttl      time.Duration
	failOpen bool
	now      func() time.Time
	logger   zerolog.Logger
}

// NewGuard returns a Guard over codes. With failOpen a store error is logged and reported as
// "no live code"; otherwise the error is returned.
func NewGuard(codes accesscoderepo.Repository, ttl time.Duration, failOpen bool, logger zerolog.Logger) *Guard {
	if ttl <= 0 {
		ttl = accesscodedomain.DefaultTTL
	}
	return &Guard{
		codes:    codes,
		ttl:      ttl,
		failOpen: failOpen,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// HasLiveCode lists unused codes for the triple and checks in-process whether any was created within the TTL.
func (g *Guard) HasLiveCode(ctx context.Context, identifier string, role userdomain.Role, channel accesscodedomain.Channel) (bool, error) {
	list, err := g.codes.ListUnused(ctx, accesscoderepo.Filter{Identifier: identifier, Role: role, Channel: channel})
	if err != nil {
		if g.failOpen {
			g.logger.Error().Err(err).Str("channel", string(channel)).Msg("throttle lookup failed, allowing issuance")
			return false, nil
		}
		return false, fmt.Errorf("throttle lookup: %w", err)
	}
	now := g.now()
	for _, c := range list {
		if c.IsLive(now, g.ttl) {
			return true, nil
		}
	}
	return false, nil
}
