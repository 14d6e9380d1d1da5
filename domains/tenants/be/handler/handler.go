package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack-hq/caretrack/domains/tenants/be/service"
	platformlogging "github.com/caretrack-hq/caretrack/platform/go/logging"
	"github.com/caretrack-hq/caretrack/platform/go/problem"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

const tenantsBasePath = "/api/v1/tenants"

type operation string

const (
	listOperation   operation = "listTenants"
	createOperation operation = "createTenant"
	getOperation    operation = "getTenant"
	updateOperation operation = "updateTenant"
	deleteOperation operation = "deleteTenant"
)

// Handler exposes the tenant registry over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the registry router, mounted at /tenants.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{tenantID}", h.get)
	r.Patch("/{tenantID}", h.update)
	r.Delete("/{tenantID}", h.delete)
	return r
}

type tenantResponse struct {
	TenantID  uuid.UUID      `json:"tenantId"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Status    string         `json:"status"`
	Tier      string         `json:"tier"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type tenantListResponse struct {
	Items      []tenantResponse `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
}

type createTenantRequest struct {
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Tier        string         `json:"tier"`
	Settings    map[string]any `json:"settings"`
	OwnerUserID *uuid.UUID     `json:"ownerUserId"`
}

type updateTenantRequest struct {
	Name     *string        `json:"name"`
	Status   *string        `json:"status"`
	Tier     *string        `json:"tier"`
	Settings map[string]any `json:"settings"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	opts := service.ListOptions{Page: 1, PageSize: 20}
	if page := r.URL.Query().Get("page"); page != "" {
		fmt.Sscanf(page, "%d", &opts.Page) // nolint:errcheck
	}
	if pageSize := r.URL.Query().Get("pageSize"); pageSize != "" {
		fmt.Sscanf(pageSize, "%d", &opts.PageSize) // nolint:errcheck
	}
	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = &status
	}

	result, err := h.svc.List(ctx, actor, opts)
	if err != nil {
		h.writeError(ctx, w, err, listOperation)
		return
	}

	items := make([]tenantResponse, 0, len(result.Tenants))
	for _, t := range result.Tenants {
		items = append(items, toAPITenant(t))
	}

	writeJSON(w, http.StatusOK, tenantListResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	var body createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", "request body must be valid JSON", problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	input := service.CreateInput{
		Name:        body.Name,
		Slug:        body.Slug,
		Tier:        body.Tier,
		Settings:    body.Settings,
		OwnerUserID: body.OwnerUserID,
	}

	created, err := h.svc.Create(ctx, actor, input)
	if err != nil {
		h.writeError(ctx, w, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", tenantsBasePath, created.ID))
	writeJSON(w, http.StatusCreated, toAPITenant(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	id, ok := tenantIDParam(r)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, getOperation)
		return
	}

	t, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		h.writeError(ctx, w, err, getOperation)
		return
	}

	writeJSON(w, http.StatusOK, toAPITenant(t))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	id, ok := tenantIDParam(r)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, updateOperation)
		return
	}

	var body updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", "request body must be valid JSON", problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	input := service.UpdateInput{
		Name:     body.Name,
		Status:   body.Status,
		Tier:     body.Tier,
		Settings: body.Settings,
	}

	updated, err := h.svc.Update(ctx, actor, id, input)
	if err != nil {
		h.writeError(ctx, w, err, updateOperation)
		return
	}

	writeJSON(w, http.StatusOK, toAPITenant(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	id, ok := tenantIDParam(r)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, deleteOperation)
		return
	}

	if err := h.svc.Delete(ctx, actor, id); err != nil {
		h.writeError(ctx, w, err, deleteOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func tenantIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func toAPITenant(t service.Tenant) tenantResponse {
	return tenantResponse{
		TenantID:  t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Status:    t.Status,
		Tier:      t.Tier,
		Settings:  t.Settings,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op operation) {
	status, title, detail, problemType, fieldErrors := classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("tenant operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("tenant resource not found", fields...)
	default:
		logger.Warn("tenant request rejected", append(fields, zap.Error(err))...)
	}

	problem.Write(w, problem.Build(title, detail, problemType, status, fieldErrors))
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problem.TypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"",
			problem.TypeNotFound,
			nil
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			"Forbidden",
			"operation not permitted",
			problem.TypeForbidden,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"tenant already exists",
			problem.TypeConflict,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problem.TypeInternal,
			nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
