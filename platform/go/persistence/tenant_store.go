package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantsTable is the tenant registry table.
const TenantsTable = "tenants"

// Tenant status values.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// TenantRecord represents a row in the tenant registry. The registry is the
// partition root: it is not itself tenant-scoped, and it is never hard-deleted
// in normal operation.
type TenantRecord struct {
	TenantID  uuid.UUID      `db:"tenant_id"`
	Name      string         `db:"name"`
	Slug      string         `db:"slug"`
	Status    string         `db:"status"`
	Tier      string         `db:"tier"`
	Settings  map[string]any `db:"settings"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	DeletedAt *time.Time     `db:"deleted_at"`
}

// TenantStore provides access to the tenant registry.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a store; assumes ApplyCoreSchema already ran.
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

const tenantColumns = "tenant_id, name, slug, status, tier, settings, created_at, updated_at, deleted_at"

// Create inserts a new tenant. A live tenant with the same slug is ErrConflict.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.TenantID == uuid.Nil {
		return TenantRecord{}, errors.New("tenant id is required")
	}

	settings := rec.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (tenant_id, name, slug, status, tier, settings)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, TenantsTable, tenantColumns)

	row := s.pool.QueryRow(ctx, query, rec.TenantID, rec.Name, rec.Slug, rec.Status, rec.Tier, settings)
	out, err := scanTenantRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return TenantRecord{}, ErrConflict
		}
		return TenantRecord{}, fmt.Errorf("insert tenant: %w", err)
	}
	return out, nil
}

// GetByID fetches a live tenant by id.
func (s *TenantStore) GetByID(ctx context.Context, id uuid.UUID) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL`, tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, id))
}

// GetBySlug fetches a live tenant by slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1 AND deleted_at IS NULL`, tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, slug))
}

// List returns paginated live tenants with an optional status filter.
func (s *TenantStore) List(ctx context.Context, status *string, limit, offset int) ([]TenantRecord, int, error) {
	where := "WHERE deleted_at IS NULL"
	args := []any{}
	if status != nil {
		where += " AND status = $1"
		args = append(args, *status)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", TenantsTable, where)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		tenantColumns, TenantsTable, where, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var records []TenantRecord
	for rows.Next() {
		rec, err := scanTenantRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// UpdateTenantParams captures the mutable registry fields; nil means unchanged.
type UpdateTenantParams struct {
	Name     *string
	Status   *string
	Tier     *string
	Settings map[string]any
}

// Update applies the provided fields to a live tenant.
func (s *TenantStore) Update(ctx context.Context, id uuid.UUID, params UpdateTenantParams) (TenantRecord, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	n := 1

	if params.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", n))
		args = append(args, *params.Name)
		n++
	}
	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", n))
		args = append(args, *params.Status)
		n++
	}
	if params.Tier != nil {
		sets = append(sets, fmt.Sprintf("tier = $%d", n))
		args = append(args, *params.Tier)
		n++
	}
	if params.Settings != nil {
		sets = append(sets, fmt.Sprintf("settings = $%d", n))
		args = append(args, params.Settings)
		n++
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE tenant_id = $%d AND deleted_at IS NULL RETURNING %s`,
		TenantsTable, joinSets(sets), n, tenantColumns)
	args = append(args, id)

	return scanTenantRecord(s.pool.QueryRow(ctx, query, args...))
}

// SoftDelete marks the tenant deleted. Idempotent; returns whether the call
// transitioned the row.
func (s *TenantStore) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = NOW(), updated_at = NOW() WHERE tenant_id = $1 AND deleted_at IS NULL`, TenantsTable)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("soft delete tenant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	if err := row.Scan(&rec.TenantID, &rec.Name, &rec.Slug, &rec.Status, &rec.Tier, &rec.Settings, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}
