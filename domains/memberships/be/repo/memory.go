package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// MemoryRepository is an in-memory implementation for tests and early
// development. Invitation acceptance performs the same conditional claim the
// database path does, under a single mutex, so concurrent acceptance behaves
// identically: exactly one caller wins.
type MemoryRepository struct {
	mu          sync.Mutex
	tenants     map[uuid.UUID]persistence.TenantRecord
	memberships map[uuid.UUID]persistence.MembershipRecord
	removed     map[uuid.UUID]bool
	invitations map[uuid.UUID]persistence.InvitationRecord
	tokens      map[string]uuid.UUID
	users       map[uuid.UUID]persistence.UserRecord
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants:     make(map[uuid.UUID]persistence.TenantRecord),
		memberships: make(map[uuid.UUID]persistence.MembershipRecord),
		removed:     make(map[uuid.UUID]bool),
		invitations: make(map[uuid.UUID]persistence.InvitationRecord),
		tokens:      make(map[string]uuid.UUID),
		users:       make(map[uuid.UUID]persistence.UserRecord),
	}
}

// SeedTenant registers a tenant record directly.
func (r *MemoryRepository) SeedTenant(rec persistence.TenantRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[rec.TenantID] = rec
}

// SeedUser registers a user record directly.
func (r *MemoryRepository) SeedUser(rec persistence.UserRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[rec.UserID] = rec
}

// SeedInvitation registers an invitation record directly.
func (r *MemoryRepository) SeedInvitation(rec persistence.InvitationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invitations[rec.ID] = rec
	if rec.Token != "" {
		r.tokens[rec.Token] = rec.ID
	}
}

func (r *MemoryRepository) TenantByID(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tenants[id]
	if !ok || rec.DeletedAt != nil {
		return persistence.TenantRecord{}, persistence.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) Membership(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (persistence.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findMembershipLocked(scope.TenantID, userID)
}

func (r *MemoryRepository) AddMembership(ctx context.Context, scope tenant.Scope, params persistence.AddMembershipParams) (persistence.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addMembershipLocked(scope.TenantID, params.UserID, params.Role, params.IsPrimary)
}

func (r *MemoryRepository) ListMemberships(ctx context.Context, scope tenant.Scope) ([]persistence.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []persistence.MembershipRecord
	for id, rec := range r.memberships {
		if r.removed[id] || rec.TenantID != scope.TenantID {
			continue
		}
		items = append(items, rec)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JoinedAt.Before(items[j].JoinedAt) })
	return items, nil
}

func (r *MemoryRepository) UpdateMembershipRole(ctx context.Context, scope tenant.Scope, id uuid.UUID, role string) (persistence.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.memberships[id]
	if !ok || r.removed[id] || rec.TenantID != scope.TenantID {
		return persistence.MembershipRecord{}, persistence.ErrNotFound
	}

	rec.Role = role
	r.memberships[id] = rec
	return rec, nil
}

func (r *MemoryRepository) RemoveMembership(ctx context.Context, scope tenant.Scope, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.memberships[id]
	if !ok || r.removed[id] || rec.TenantID != scope.TenantID {
		return false, nil
	}

	r.removed[id] = true
	return true, nil
}

func (r *MemoryRepository) CreateInvitation(ctx context.Context, scope tenant.Scope, params persistence.CreateInvitationParams) (persistence.InvitationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	email := strings.ToLower(strings.TrimSpace(params.Email))

	for _, inv := range r.invitations {
		if inv.TenantID != scope.TenantID || inv.Email != email {
			continue
		}
		if inv.AcceptedAt == nil && inv.ExpiresAt.After(now) {
			return persistence.InvitationRecord{}, persistence.ErrConflict
		}
	}

	rec := persistence.InvitationRecord{
		ID:        uuid.New(),
		TenantID:  scope.TenantID,
		Email:     email,
		Role:      params.Role,
		Token:     uuid.NewString() + uuid.NewString(),
		ExpiresAt: now.Add(persistence.InvitationTTL),
		CreatedAt: now,
		CreatedBy: params.CreatedBy,
	}

	r.invitations[rec.ID] = rec
	r.tokens[rec.Token] = rec.ID
	return rec, nil
}

func (r *MemoryRepository) ListInvitations(ctx context.Context, scope tenant.Scope) ([]persistence.InvitationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []persistence.InvitationRecord
	for _, rec := range r.invitations {
		if rec.TenantID != scope.TenantID {
			continue
		}
		rec.Token = ""
		items = append(items, rec)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *MemoryRepository) AcceptInvitation(ctx context.Context, params persistence.AcceptParams) (persistence.AcceptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.tokens[params.Token]
	if !ok {
		return persistence.AcceptResult{}, persistence.ErrInvalidInvitation
	}

	now := time.Now().UTC()
	inv := r.invitations[id]
	if inv.AcceptedAt != nil || !inv.ExpiresAt.After(now) {
		return persistence.AcceptResult{}, persistence.ErrInvalidInvitation
	}

	tenantRec, ok := r.tenants[inv.TenantID]
	if !ok || tenantRec.DeletedAt != nil || tenantRec.Status != persistence.TenantStatusActive {
		return persistence.AcceptResult{}, persistence.ErrInvalidInvitation
	}

	user, found := r.userByEmailLocked(inv.Email)
	if !found {
		user = persistence.UserRecord{
			UserID:        uuid.New(),
			Email:         inv.Email,
			FullName:      params.FullName,
			CredentialRef: params.CredentialRef,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		r.users[user.UserID] = user
	}

	membership, err := r.addMembershipLocked(inv.TenantID, user.UserID, inv.Role, false)
	if err != nil {
		return persistence.AcceptResult{}, err
	}

	inv.AcceptedAt = &now
	r.invitations[id] = inv

	return persistence.AcceptResult{Membership: membership, User: user}, nil
}

func (r *MemoryRepository) UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]persistence.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make(map[uuid.UUID]persistence.UserRecord, len(ids))
	for _, id := range ids {
		if rec, ok := r.users[id]; ok {
			records[id] = rec
		}
	}
	return records, nil
}

func (r *MemoryRepository) findMembershipLocked(tenantID, userID uuid.UUID) (persistence.MembershipRecord, error) {
	for id, rec := range r.memberships {
		if !r.removed[id] && rec.TenantID == tenantID && rec.UserID == userID {
			return rec, nil
		}
	}
	return persistence.MembershipRecord{}, persistence.ErrNotFound
}

func (r *MemoryRepository) addMembershipLocked(tenantID, userID uuid.UUID, role string, isPrimary bool) (persistence.MembershipRecord, error) {
	if _, err := r.findMembershipLocked(tenantID, userID); err == nil {
		return persistence.MembershipRecord{}, persistence.ErrConflict
	}

	if isPrimary {
		for id, rec := range r.memberships {
			if !r.removed[id] && rec.TenantID == tenantID && rec.IsPrimary {
				return persistence.MembershipRecord{}, persistence.ErrConflict
			}
		}
	}

	rec := persistence.MembershipRecord{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Role:      role,
		IsPrimary: isPrimary,
		JoinedAt:  time.Now().UTC(),
	}

	r.memberships[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) userByEmailLocked(email string) (persistence.UserRecord, bool) {
	for _, rec := range r.users {
		if rec.Email == email {
			return rec, true
		}
	}
	return persistence.UserRecord{}, false
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
