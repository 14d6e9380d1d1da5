package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
)

// Repository abstracts tenant registry persistence.
type Repository interface {
	Create(ctx context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error)
	GetBySlug(ctx context.Context, slug string) (persistence.TenantRecord, error)
	List(ctx context.Context, status *string, limit, offset int) ([]persistence.TenantRecord, int, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (persistence.TenantRecord, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}
