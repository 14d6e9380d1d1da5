package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and
// early development. Soft deletes hide rows the same way the live indexes do.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]persistence.TenantRecord
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]persistence.TenantRecord)}
}

func (r *MemoryRepository) Create(ctx context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.DeletedAt == nil && existing.Slug == rec.Slug {
			return persistence.TenantRecord{}, persistence.ErrConflict
		}
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	r.byID[rec.TenantID] = rec
	return rec, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok || rec.DeletedAt != nil {
		return persistence.TenantRecord{}, persistence.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (persistence.TenantRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.byID {
		if rec.DeletedAt == nil && rec.Slug == slug {
			return rec, nil
		}
	}
	return persistence.TenantRecord{}, persistence.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context, status *string, limit, offset int) ([]persistence.TenantRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]persistence.TenantRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		if rec.DeletedAt != nil {
			continue
		}
		if status != nil && rec.Status != *status {
			continue
		}
		items = append(items, rec)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })

	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	return items[offset:end], total, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (persistence.TenantRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.DeletedAt != nil {
		return persistence.TenantRecord{}, persistence.ErrNotFound
	}

	if params.Name != nil {
		rec.Name = *params.Name
	}
	if params.Status != nil {
		rec.Status = *params.Status
	}
	if params.Tier != nil {
		rec.Tier = *params.Tier
	}
	if params.Settings != nil {
		rec.Settings = params.Settings
	}
	rec.UpdatedAt = time.Now().UTC()

	r.byID[id] = rec
	return rec, nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.DeletedAt != nil {
		return false, nil
	}

	now := time.Now().UTC()
	rec.DeletedAt = &now
	r.byID[id] = rec
	return true, nil
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
