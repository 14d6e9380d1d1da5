package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
)

// PostgresRepository backs the tenant registry with the persistence tenant store.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error) {
	return r.store.Create(ctx, rec)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	return r.store.GetByID(ctx, id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.TenantRecord, error) {
	return r.store.GetBySlug(ctx, slug)
}

func (r *PostgresRepository) List(ctx context.Context, status *string, limit, offset int) ([]persistence.TenantRecord, int, error) {
	return r.store.List(ctx, status, limit, offset)
}

func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (persistence.TenantRecord, error) {
	return r.store.Update(ctx, id, params)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.store.SoftDelete(ctx, id)
}

// Ensure interface compliance.
var _ Repository = (*PostgresRepository)(nil)
