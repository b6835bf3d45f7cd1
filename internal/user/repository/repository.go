package repository

import (
	"context"

	"github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
	GetByPhoneAndRole(ctx context.Context, phone string, role domain.Role) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// CreateIfAbsentByPhone inserts u unless a user with the same phone and role exists, and returns the
	// stored user either way. created reports whether u was inserted.
	CreateIfAbsentByPhone(ctx context.Context, u *domain.User) (stored *domain.User, created bool, err error)
	// MarkVerified sets verified = true. No-op if already verified.
	MarkVerified(ctx context.Context, id string) error
}
