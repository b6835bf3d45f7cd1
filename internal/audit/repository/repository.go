package repository

import (
	"context"

	"github.com/hungle-ag/task-manager-server/internal/audit/domain"
)

// Repository is the append-only audit log store.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
}
