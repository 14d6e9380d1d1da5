package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// MembershipsTable is the tenant-user association table.
const MembershipsTable = "memberships"

// Membership roles. The set is deployment-defined, but "primary" is
// structurally distinguished: exactly one live membership per tenant carries
// it, and it is immutable through the ordinary membership operations.
const (
	RolePrimary = "primary"
	RoleAdmin   = "admin"
	RoleMember  = "member"
	RoleViewer  = "viewer"
)

// MembershipRecord represents a live membership row.
type MembershipRecord struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Role      string
	IsPrimary bool
	JoinedAt  time.Time
}

// MembershipStore manages memberships exclusively through the scoped data
// access layer, so every read and write is tenant-filtered by construction.
type MembershipStore struct {
	db *ScopedDB
}

// NewMembershipStore returns a store over the scoped layer.
func NewMembershipStore(db *ScopedDB) (*MembershipStore, error) {
	if db == nil {
		return nil, errors.New("scoped db is required")
	}
	if _, err := db.ident(MembershipsTable); err != nil {
		return nil, err
	}
	return &MembershipStore{db: db}, nil
}

// AddMembershipParams captures a direct member addition.
type AddMembershipParams struct {
	UserID    uuid.UUID
	Role      string
	IsPrimary bool
}

// Add inserts a membership. An existing live membership for the user is
// ErrConflict; the partial unique index backs the check under concurrency.
func (s *MembershipStore) Add(ctx context.Context, scope tenant.Scope, params AddMembershipParams) (MembershipRecord, error) {
	if params.UserID == uuid.Nil {
		return MembershipRecord{}, errors.New("user id is required")
	}

	existing, err := s.db.Query(ctx, scope, MembershipsTable, Where("user_id", OpEq, params.UserID))
	if err != nil {
		return MembershipRecord{}, err
	}
	if len(existing) > 0 {
		return MembershipRecord{}, ErrConflict
	}

	row, err := s.db.Insert(ctx, scope, MembershipsTable, Row{
		"user_id":    params.UserID,
		"role":       params.Role,
		"is_primary": params.IsPrimary,
		"joined_at":  time.Now().UTC(),
	})
	if err != nil {
		return MembershipRecord{}, err
	}
	return membershipFromRow(row)
}

// GetByUser returns the live membership for a user within the tenant.
func (s *MembershipStore) GetByUser(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (MembershipRecord, error) {
	rows, err := s.db.Query(ctx, scope, MembershipsTable, Where("user_id", OpEq, userID))
	if err != nil {
		return MembershipRecord{}, err
	}
	if len(rows) == 0 {
		return MembershipRecord{}, ErrNotFound
	}
	return membershipFromRow(rows[0])
}

// List returns all live memberships for the tenant.
func (s *MembershipStore) List(ctx context.Context, scope tenant.Scope) ([]MembershipRecord, error) {
	rows, err := s.db.Query(ctx, scope, MembershipsTable, Predicate{})
	if err != nil {
		return nil, err
	}

	records := make([]MembershipRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := membershipFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateRole changes the role of the identified membership. Callers enforce
// the primary-immutability rule before reaching the store.
func (s *MembershipStore) UpdateRole(ctx context.Context, scope tenant.Scope, id uuid.UUID, role string) (MembershipRecord, error) {
	row, err := s.db.Update(ctx, scope, MembershipsTable, id, Row{"role": role})
	if err != nil {
		return MembershipRecord{}, err
	}
	return membershipFromRow(row)
}

// Remove soft-deletes the identified membership.
func (s *MembershipStore) Remove(ctx context.Context, scope tenant.Scope, id uuid.UUID) (bool, error) {
	return s.db.SoftDelete(ctx, scope, MembershipsTable, id)
}

func membershipFromRow(row Row) (MembershipRecord, error) {
	id, err := rowUUID(row, "id")
	if err != nil {
		return MembershipRecord{}, err
	}
	tenantID, err := rowUUID(row, "tenant_id")
	if err != nil {
		return MembershipRecord{}, err
	}
	userID, err := rowUUID(row, "user_id")
	if err != nil {
		return MembershipRecord{}, err
	}
	joinedAt, err := rowTime(row, "joined_at")
	if err != nil {
		return MembershipRecord{}, err
	}

	role, _ := row["role"].(string)
	isPrimary, _ := row["is_primary"].(bool)

	return MembershipRecord{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Role:      role,
		IsPrimary: isPrimary,
		JoinedAt:  joinedAt,
	}, nil
}

// rowUUID converts the generic row value for key into a uuid, accepting the
// raw byte form pgx returns for uuid columns as well as string form.
func rowUUID(row Row, key string) (uuid.UUID, error) {
	switch v := row[key].(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		return uuid.FromBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("row field %q is not a uuid (got %T)", key, row[key])
	}
}

func rowTime(row Row, key string) (time.Time, error) {
	if v, ok := row[key].(time.Time); ok {
		return v, nil
	}
	return time.Time{}, fmt.Errorf("row field %q is not a timestamp (got %T)", key, row[key])
}

func rowOptionalTime(row Row, key string) *time.Time {
	if v, ok := row[key].(time.Time); ok {
		return &v
	}
	return nil
}
