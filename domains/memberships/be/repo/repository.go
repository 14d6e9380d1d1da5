package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// Repository abstracts membership lifecycle persistence. All membership and
// invitation reads and writes are tenant-scoped; invitation acceptance is
// keyed by token alone because the invitee has no tenant yet.
type Repository interface {
	TenantByID(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error)

	Membership(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (persistence.MembershipRecord, error)
	AddMembership(ctx context.Context, scope tenant.Scope, params persistence.AddMembershipParams) (persistence.MembershipRecord, error)
	ListMemberships(ctx context.Context, scope tenant.Scope) ([]persistence.MembershipRecord, error)
	UpdateMembershipRole(ctx context.Context, scope tenant.Scope, id uuid.UUID, role string) (persistence.MembershipRecord, error)
	RemoveMembership(ctx context.Context, scope tenant.Scope, id uuid.UUID) (bool, error)

	CreateInvitation(ctx context.Context, scope tenant.Scope, params persistence.CreateInvitationParams) (persistence.InvitationRecord, error)
	ListInvitations(ctx context.Context, scope tenant.Scope) ([]persistence.InvitationRecord, error)
	AcceptInvitation(ctx context.Context, params persistence.AcceptParams) (persistence.AcceptResult, error)

	UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]persistence.UserRecord, error)
}
