package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/caretrack-hq/caretrack/domains/tenants/be/service"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

type mockService struct {
	listFn      func(ctx context.Context, actor requesttrace.Actor, opts service.ListOptions) (service.ListResult, error)
	createFn    func(ctx context.Context, actor requesttrace.Actor, input service.CreateInput) (service.Tenant, error)
	getFn       func(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) (service.Tenant, error)
	getBySlugFn func(ctx context.Context, actor requesttrace.Actor, slug string) (service.Tenant, error)
	updateFn    func(ctx context.Context, actor requesttrace.Actor, id uuid.UUID, input service.UpdateInput) (service.Tenant, error)
	deleteFn    func(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) error
}

func (m *mockService) List(ctx context.Context, actor requesttrace.Actor, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, actor, opts)
}

func (m *mockService) Create(ctx context.Context, actor requesttrace.Actor, input service.CreateInput) (service.Tenant, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, actor, input)
}

func (m *mockService) Get(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) (service.Tenant, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, actor, id)
}

func (m *mockService) GetBySlug(ctx context.Context, actor requesttrace.Actor, slug string) (service.Tenant, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, actor, slug)
}

func (m *mockService) Update(ctx context.Context, actor requesttrace.Actor, id uuid.UUID, input service.UpdateInput) (service.Tenant, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, actor, id, input)
}

func (m *mockService) Delete(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, actor, id)
}

var _ service.Service = (*mockService)(nil)

func testRouter(h *Handler, actor requesttrace.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requesttrace.IntoContext(req.Context(), actor)))
		})
	})
	r.Mount("/tenants", h.Routes())
	return r
}

func adminActor() requesttrace.Actor {
	return requesttrace.Actor{Kind: requesttrace.ActorKindUser, UserID: uuid.New(), IsAdmin: true}
}

func TestCreateTenantSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	svc := &mockService{
		createFn: func(ctx context.Context, actor requesttrace.Actor, input service.CreateInput) (service.Tenant, error) {
			require.Equal(t, "Riverside Care", input.Name)
			require.Equal(t, "riverside-care", input.Slug)
			return service.Tenant{
				ID:        uuid.New(),
				Name:      input.Name,
				Slug:      input.Slug,
				Status:    "active",
				Tier:      "standard",
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}

	router := testRouter(New(svc, zaptest.NewLogger(t)), adminActor())

	req := httptest.NewRequest(http.MethodPost, "/tenants",
		strings.NewReader(`{"name":"Riverside Care","slug":"riverside-care"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/api/v1/tenants/")

	var body tenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "riverside-care", body.Slug)
	require.Equal(t, "active", body.Status)
}

func TestCreateTenantForbiddenForNonAdmins(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		createFn: func(ctx context.Context, actor requesttrace.Actor, input service.CreateInput) (service.Tenant, error) {
			return service.Tenant{}, service.ErrForbidden
		},
	}

	router := testRouter(New(svc, zaptest.NewLogger(t)), requesttrace.Actor{Kind: requesttrace.ActorKindUser, UserID: uuid.New()})

	req := httptest.NewRequest(http.MethodPost, "/tenants", strings.NewReader(`{"name":"Clinic","slug":"clinic"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateTenantValidationErrors(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		createFn: func(ctx context.Context, actor requesttrace.Actor, input service.CreateInput) (service.Tenant, error) {
			return service.Tenant{}, &service.ValidationError{Fields: service.FieldErrors{
				"slug": []string{"invalid slug"},
			}}
		},
	}

	router := testRouter(New(svc, zaptest.NewLogger(t)), adminActor())

	req := httptest.NewRequest(http.MethodPost, "/tenants", strings.NewReader(`{"name":"Clinic","slug":"has spaces"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "slug")
}

func TestGetTenantNotFoundIsOpaque(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		getFn: func(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) (service.Tenant, error) {
			return service.Tenant{}, service.ErrNotFound
		},
	}

	router := testRouter(New(svc, zaptest.NewLogger(t)), adminActor())

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotContains(t, rec.Body.String(), "tenant")
}

func TestGetTenantMalformedIDIs404(t *testing.T) {
	t.Parallel()

	router := testRouter(New(&mockService{}, zaptest.NewLogger(t)), adminActor())

	req := httptest.NewRequest(http.MethodGet, "/tenants/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTenantNoContent(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		deleteFn: func(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) error {
			return nil
		},
	}

	router := testRouter(New(svc, zaptest.NewLogger(t)), adminActor())

	req := httptest.NewRequest(http.MethodDelete, "/tenants/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}
