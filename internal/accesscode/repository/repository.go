package repository

import (
	"context"
	"errors"

	"github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// ErrAlreadyUsed is returned by MarkUsed when the record is missing or was already used.
var ErrAlreadyUsed = errors.New("access code already used")

// Filter selects unused access codes. Identifier is required; an empty Role or Channel matches any.
type Filter struct {
	Identifier string
	Role       userdomain.Role
	Channel    domain.Channel
}

// Repository defines persistence for access codes.
type Repository interface {
	Create(ctx context.Context, c *domain.AccessCode) error
	// GetByID returns the access code for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AccessCode, error)
	// ListUnused returns every access code matching f with is_used = false.
	ListUnused(ctx context.Context, f Filter) ([]*domain.AccessCode, error)
	// MarkUsed sets is_used = true on a single unused record, or returns ErrAlreadyUsed.
	MarkUsed(ctx context.Context, id string) error
	// DeleteBatch deletes all ids in one transaction; either all rows go or none do.
	DeleteBatch(ctx context.Context, ids []string) error
}
