package persistence

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

func TestInvitationLifecycleIntegration(t *testing.T) {
	if _, ok := os.LookupEnv("TEST_DATABASE_URL"); !ok {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	pool, cleanup := mustTestPool(t)
	defer cleanup()

	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)

	db, err := NewScopedDB(pool, MembershipsTable, InvitationsTable)
	require.NoError(t, err)
	memberships, err := NewMembershipStore(db)
	require.NoError(t, err)
	invitations, err := NewInvitationStore(db, pool)
	require.NoError(t, err)

	tenantRec, err := tenants.Create(ctx, TenantRecord{
		TenantID: uuid.New(),
		Name:     "Riverside Care",
		Slug:     "riverside-care-" + uuid.NewString()[:8],
		Status:   TenantStatusActive,
		Tier:     "standard",
	})
	require.NoError(t, err)
	scope := tenant.Scope{TenantID: tenantRec.TenantID}

	owner, err := users.Create(ctx, CreateUserParams{UserID: uuid.New(), Email: uuid.NewString() + "@example.com", FullName: "Owner"})
	require.NoError(t, err)

	ownerMembership, err := memberships.Add(ctx, scope, AddMembershipParams{UserID: owner.UserID, Role: RolePrimary, IsPrimary: true})
	require.NoError(t, err)
	require.True(t, ownerMembership.IsPrimary)

	// The partial unique index allows exactly one live primary per tenant.
	second, err := users.Create(ctx, CreateUserParams{UserID: uuid.New(), Email: uuid.NewString() + "@example.com", FullName: "Second"})
	require.NoError(t, err)
	_, err = memberships.Add(ctx, scope, AddMembershipParams{UserID: second.UserID, Role: RoleAdmin, IsPrimary: true})
	require.ErrorIs(t, err, ErrConflict)

	inviteEmail := uuid.NewString() + "@example.com"
	invitation, err := invitations.Create(ctx, scope, CreateInvitationParams{
		Email:     inviteEmail,
		Role:      RoleMember,
		CreatedBy: owner.UserID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, invitation.Token)
	require.Equal(t, InvitationPending, invitation.StatusAt(time.Now()))
	require.WithinDuration(t, time.Now().Add(InvitationTTL), invitation.ExpiresAt, time.Minute)

	// A second pending invitation for the same address is rejected, not replaced.
	_, err = invitations.Create(ctx, scope, CreateInvitationParams{Email: inviteEmail, Role: RoleViewer, CreatedBy: owner.UserID})
	require.ErrorIs(t, err, ErrConflict)

	// Listings never expose the token.
	listed, err := invitations.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].Token)

	result, err := invitations.Accept(ctx, AcceptParams{Token: invitation.Token, FullName: "Invited Member"})
	require.NoError(t, err)
	require.Equal(t, tenantRec.TenantID, result.Membership.TenantID)
	require.Equal(t, RoleMember, result.Membership.Role)
	require.False(t, result.Membership.IsPrimary)
	require.Equal(t, inviteEmail, result.User.Email)

	// The token is single-use.
	_, err = invitations.Accept(ctx, AcceptParams{Token: invitation.Token})
	require.ErrorIs(t, err, ErrInvalidInvitation)

	// Unknown tokens read the same as spent ones.
	_, err = invitations.Accept(ctx, AcceptParams{Token: "does-not-exist"})
	require.ErrorIs(t, err, ErrInvalidInvitation)

	listed, err = invitations.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, InvitationAccepted, listed[0].StatusAt(time.Now()))

	// Once accepted, the address is free to be invited again.
	reissued, err := invitations.Create(ctx, scope, CreateInvitationParams{Email: inviteEmail, Role: RoleAdmin, CreatedBy: owner.UserID})
	require.NoError(t, err)
	require.NotEqual(t, invitation.Token, reissued.Token)
}

func TestInvitationAcceptExactlyOnceIntegration(t *testing.T) {
	if _, ok := os.LookupEnv("TEST_DATABASE_URL"); !ok {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	pool, cleanup := mustTestPool(t)
	defer cleanup()

	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)

	db, err := NewScopedDB(pool, MembershipsTable, InvitationsTable)
	require.NoError(t, err)
	memberships, err := NewMembershipStore(db)
	require.NoError(t, err)
	invitations, err := NewInvitationStore(db, pool)
	require.NoError(t, err)

	tenantRec, err := tenants.Create(ctx, TenantRecord{
		TenantID: uuid.New(),
		Name:     "Concurrent Care",
		Slug:     "concurrent-care-" + uuid.NewString()[:8],
		Status:   TenantStatusActive,
		Tier:     "standard",
	})
	require.NoError(t, err)
	scope := tenant.Scope{TenantID: tenantRec.TenantID}

	owner, err := users.Create(ctx, CreateUserParams{UserID: uuid.New(), Email: uuid.NewString() + "@example.com"})
	require.NoError(t, err)

	invitation, err := invitations.Create(ctx, scope, CreateInvitationParams{
		Email:     uuid.NewString() + "@example.com",
		Role:      RoleMember,
		CreatedBy: owner.UserID,
	})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = invitations.Accept(ctx, AcceptParams{Token: invitation.Token, FullName: "Racer"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidInvitation)
	}
	require.Equal(t, 1, succeeded)

	members, err := memberships.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, members, 1)
}
