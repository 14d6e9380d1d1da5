package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

func TestScopedDBIsolationIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping scoped db integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("caretrack"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() {
		ClosePool(pool)
	})

	require.NoError(t, ApplyCoreSchema(ctx, pool))

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)

	tenantA, err := tenants.Create(ctx, TenantRecord{TenantID: uuid.New(), Name: "Clinic A", Slug: "clinic-a", Status: TenantStatusActive, Tier: "standard"})
	require.NoError(t, err)
	tenantB, err := tenants.Create(ctx, TenantRecord{TenantID: uuid.New(), Name: "Clinic B", Slug: "clinic-b", Status: TenantStatusActive, Tier: "standard"})
	require.NoError(t, err)

	user, err := users.Create(ctx, CreateUserParams{UserID: uuid.New(), Email: "nurse@example.com", FullName: "Nurse Example"})
	require.NoError(t, err)

	scopeA := tenant.Scope{TenantID: tenantA.TenantID}
	scopeB := tenant.Scope{TenantID: tenantB.TenantID}

	db, err := NewScopedDB(pool, MembershipsTable, InvitationsTable)
	require.NoError(t, err)

	// A tenant_id smuggled into the payload is overwritten by the scope.
	row, err := db.Insert(ctx, scopeA, MembershipsTable, Row{
		"tenant_id": tenantB.TenantID,
		"user_id":   user.UserID,
		"role":      RoleMember,
	})
	require.NoError(t, err)

	storedTenant, err := rowUUID(row, "tenant_id")
	require.NoError(t, err)
	require.Equal(t, tenantA.TenantID, storedTenant)

	id, err := rowUUID(row, "id")
	require.NoError(t, err)

	// Visible only under the owning tenant.
	_, err = db.FindByID(ctx, scopeA, MembershipsTable, id)
	require.NoError(t, err)
	_, err = db.FindByID(ctx, scopeB, MembershipsTable, id)
	require.ErrorIs(t, err, ErrNotFound)

	// Cross-tenant updates read as plain not-found.
	_, err = db.Update(ctx, scopeB, MembershipsTable, id, Row{"role": RoleAdmin})
	require.ErrorIs(t, err, ErrNotFound)

	// Scoping columns are never assignable through updates.
	updated, err := db.Update(ctx, scopeA, MembershipsTable, id, Row{"role": RoleAdmin, "tenant_id": tenantB.TenantID})
	require.NoError(t, err)
	updatedTenant, err := rowUUID(updated, "tenant_id")
	require.NoError(t, err)
	require.Equal(t, tenantA.TenantID, updatedTenant)
	require.Equal(t, RoleAdmin, updated["role"])

	// Inserting under a tenant that does not exist answers the same way a
	// read against it would.
	ghost := tenant.Scope{TenantID: uuid.New()}
	_, err = db.Insert(ctx, ghost, MembershipsTable, Row{
		"user_id": user.UserID,
		"role":    RoleMember,
	})
	require.ErrorIs(t, err, ErrNotFound)

	rows, err := db.Query(ctx, scopeB, MembershipsTable, Predicate{})
	require.NoError(t, err)
	require.Empty(t, rows)

	// Soft delete is idempotent and removes the row from every scoped read.
	deleted, err := db.SoftDelete(ctx, scopeA, MembershipsTable, id)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = db.SoftDelete(ctx, scopeA, MembershipsTable, id)
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = db.FindByID(ctx, scopeA, MembershipsTable, id)
	require.ErrorIs(t, err, ErrNotFound)
}
