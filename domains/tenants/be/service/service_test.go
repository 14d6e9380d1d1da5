package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/caretrack-hq/caretrack/domains/tenants/be/repo"
	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

func newTestService(t *testing.T) (Service, *repo.MemoryRepository) {
	t.Helper()

	memory := repo.NewMemoryRepository()
	validator, err := persistence.NewSettingsValidator()
	require.NoError(t, err)

	return New(memory, validator, nil), memory
}

func adminActor() requesttrace.Actor {
	return requesttrace.Actor{Kind: requesttrace.ActorKindUser, UserID: uuid.New(), IsAdmin: true}
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), adminActor(), CreateInput{
		Name: "  Riverside Care  ",
		Slug: "Riverside-Care",
	})
	require.NoError(t, err)
	require.Equal(t, "Riverside Care", created.Name)
	require.Equal(t, "riverside-care", created.Slug)
	require.Equal(t, persistence.TenantStatusActive, created.Status)
	require.Equal(t, "standard", created.Tier)
	require.NotEqual(t, uuid.Nil, created.ID)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), adminActor(), CreateInput{
		Name: "",
		Slug: "has spaces",
		Settings: map[string]any{
			"locale": "Spanish",
		},
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "name")
	require.Contains(t, validationErr.Fields, "slug")
	require.Contains(t, validationErr.Fields, "settings")
}

func TestCreateRequiresAdmin(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), requesttrace.Anonymous(""), CreateInput{
		Name: "Clinic",
		Slug: "clinic",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateSlugConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	_, err := svc.Create(context.Background(), actor, CreateInput{Name: "First", Slug: "clinic"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "Second", Slug: "clinic"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusTransition(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Name: "Clinic", Slug: "clinic"})
	require.NoError(t, err)

	suspended := persistence.TenantStatusSuspended
	updated, err := svc.Update(context.Background(), actor, created.ID, UpdateInput{Status: &suspended})
	require.NoError(t, err)
	require.Equal(t, persistence.TenantStatusSuspended, updated.Status)

	bogus := "archived"
	_, err = svc.Update(context.Background(), actor, created.ID, UpdateInput{Status: &bogus})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "status")
}

func TestUpdateRequiresAtLeastOneField(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Name: "Clinic", Slug: "clinic"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), actor, created.ID, UpdateInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "body")
}

func TestUpdateSettingsSchema(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Name: "Clinic", Slug: "clinic"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), actor, created.ID, UpdateInput{
		Settings: map[string]any{"timezone": "Europe/Madrid", "locale": "es-ES"},
	})
	require.NoError(t, err)
	require.Equal(t, "Europe/Madrid", updated.Settings["timezone"])

	_, err = svc.Update(context.Background(), actor, created.ID, UpdateInput{
		Settings: map[string]any{"branding": map[string]any{"accentColor": "blue"}},
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "settings")
}

func TestGetMergesDeletedAndAbsent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Name: "Clinic", Slug: "clinic"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), actor, created.ID))

	_, err = svc.Get(context.Background(), actor, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), actor, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting again stays a silent no-op.
	require.NoError(t, svc.Delete(context.Background(), actor, created.ID))
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	actor := adminActor()

	first, err := svc.Create(context.Background(), actor, CreateInput{Name: "First", Slug: "first"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "Second", Slug: "second"})
	require.NoError(t, err)

	suspended := persistence.TenantStatusSuspended
	_, err = svc.Update(context.Background(), actor, first.ID, UpdateInput{Status: &suspended})
	require.NoError(t, err)

	result, err := svc.List(context.Background(), actor, ListOptions{Status: &suspended})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalItems)
	require.Equal(t, "first", result.Tenants[0].Slug)

	all, err := svc.List(context.Background(), actor, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, all.TotalItems)
}

func TestCreateBootstrapsPrimaryMembership(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	validator, err := persistence.NewSettingsValidator()
	require.NoError(t, err)

	bootstrap := &recordingBootstrapper{}
	svc := New(memory, validator, bootstrap)

	owner := uuid.New()
	created, err := svc.Create(context.Background(), adminActor(), CreateInput{
		Name:        "Clinic",
		Slug:        "clinic",
		OwnerUserID: &owner,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, bootstrap.tenantID)
	require.Equal(t, owner, bootstrap.ownerID)
}

type recordingBootstrapper struct {
	tenantID uuid.UUID
	ownerID  uuid.UUID
}

func (b *recordingBootstrapper) BootstrapPrimary(ctx context.Context, tenantID, ownerUserID uuid.UUID) error {
	b.tenantID = tenantID
	b.ownerID = ownerUserID
	return nil
}
