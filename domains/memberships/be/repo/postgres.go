package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// PostgresRepository composes the persistence stores behind the membership
// lifecycle.
type PostgresRepository struct {
	tenants     *persistence.TenantStore
	memberships *persistence.MembershipStore
	invitations *persistence.InvitationStore
	users       *persistence.UserStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(
	tenants *persistence.TenantStore,
	memberships *persistence.MembershipStore,
	invitations *persistence.InvitationStore,
	users *persistence.UserStore,
) *PostgresRepository {
	if tenants == nil || memberships == nil || invitations == nil || users == nil {
		panic("all membership stores are required")
	}
	return &PostgresRepository{
		tenants:     tenants,
		memberships: memberships,
		invitations: invitations,
		users:       users,
	}
}

func (r *PostgresRepository) TenantByID(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	return r.tenants.GetByID(ctx, id)
}

func (r *PostgresRepository) Membership(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (persistence.MembershipRecord, error) {
	return r.memberships.GetByUser(ctx, scope, userID)
}

func (r *PostgresRepository) AddMembership(ctx context.Context, scope tenant.Scope, params persistence.AddMembershipParams) (persistence.MembershipRecord, error) {
	return r.memberships.Add(ctx, scope, params)
}

func (r *PostgresRepository) ListMemberships(ctx context.Context, scope tenant.Scope) ([]persistence.MembershipRecord, error) {
	return r.memberships.List(ctx, scope)
}

func (r *PostgresRepository) UpdateMembershipRole(ctx context.Context, scope tenant.Scope, id uuid.UUID, role string) (persistence.MembershipRecord, error) {
	return r.memberships.UpdateRole(ctx, scope, id, role)
}

func (r *PostgresRepository) RemoveMembership(ctx context.Context, scope tenant.Scope, id uuid.UUID) (bool, error) {
	return r.memberships.Remove(ctx, scope, id)
}

func (r *PostgresRepository) CreateInvitation(ctx context.Context, scope tenant.Scope, params persistence.CreateInvitationParams) (persistence.InvitationRecord, error) {
	return r.invitations.Create(ctx, scope, params)
}

func (r *PostgresRepository) ListInvitations(ctx context.Context, scope tenant.Scope) ([]persistence.InvitationRecord, error) {
	return r.invitations.List(ctx, scope)
}

func (r *PostgresRepository) AcceptInvitation(ctx context.Context, params persistence.AcceptParams) (persistence.AcceptResult, error) {
	return r.invitations.Accept(ctx, params)
}

func (r *PostgresRepository) UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]persistence.UserRecord, error) {
	return r.users.GetByIDs(ctx, ids)
}

// Ensure interface compliance.
var _ Repository = (*PostgresRepository)(nil)
