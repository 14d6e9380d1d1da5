package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/caretrack-hq/caretrack/domains/tenants/be/repo"
	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound  = errors.New("tenant not found")
	ErrConflict  = errors.New("tenant conflict")
	ErrForbidden = errors.New("operation not permitted")
)

const maxNameLength = 200

// Tenant represents a tenant registry entry.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Status    string
	Tier      string
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput defines the payload required to register a tenant. When
// OwnerUserID is set the primary membership is bootstrapped as part of creation.
type CreateInput struct {
	Name        string
	Slug        string
	Tier        string
	Settings    map[string]any
	OwnerUserID *uuid.UUID
}

// UpdateInput defines the mutable fields of a tenant.
type UpdateInput struct {
	Name     *string
	Status   *string
	Tier     *string
	Settings map[string]any
}

// ListOptions captures filters and pagination for the registry listing.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *string
}

// ListResult wraps paginated tenants.
type ListResult struct {
	Tenants    []Tenant
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// PrimaryBootstrapper establishes the founding primary membership for a new
// tenant. Implemented by the memberships domain.
type PrimaryBootstrapper interface {
	BootstrapPrimary(ctx context.Context, tenantID, ownerUserID uuid.UUID) error
}

// Service exposes the tenant registry operations.
type Service interface {
	List(ctx context.Context, actor requesttrace.Actor, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, actor requesttrace.Actor, input CreateInput) (Tenant, error)
	Get(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) (Tenant, error)
	GetBySlug(ctx context.Context, actor requesttrace.Actor, slug string) (Tenant, error)
	Update(ctx context.Context, actor requesttrace.Actor, id uuid.UUID, input UpdateInput) (Tenant, error)
	Delete(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) error
}

type service struct {
	repo      domainrepo.Repository
	settings  *persistence.SettingsValidator
	bootstrap PrimaryBootstrapper
	now       func() time.Time
}

// New builds the tenant registry Service. The bootstrapper may be nil; tenant
// creation then leaves membership setup to the caller.
func New(repo domainrepo.Repository, settings *persistence.SettingsValidator, bootstrap PrimaryBootstrapper) Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if settings == nil {
		panic("settings validator is required")
	}
	return &service{
		repo:      repo,
		settings:  settings,
		bootstrap: bootstrap,
		now:       time.Now,
	}
}

func (s *service) List(ctx context.Context, actor requesttrace.Actor, opts ListOptions) (ListResult, error) {
	if !actor.IsAdmin {
		return ListResult{}, ErrForbidden
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if opts.Status != nil {
		if err := validateStatus(*opts.Status); err != nil {
			return ListResult{}, err
		}
	}

	records, total, err := s.repo.List(ctx, opts.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return ListResult{}, err
	}

	tenants := make([]Tenant, 0, len(records))
	for _, rec := range records {
		tenants = append(tenants, mapTenant(rec))
	}

	totalPages := (total + pageSize - 1) / pageSize
	return ListResult{
		Tenants:    tenants,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, actor requesttrace.Actor, input CreateInput) (Tenant, error) {
	if !actor.IsAdmin {
		return Tenant{}, ErrForbidden
	}

	normalized, validationErr := s.validateCreateInput(input)
	if validationErr != nil {
		return Tenant{}, validationErr
	}

	now := s.now().UTC()
	rec := persistence.TenantRecord{
		TenantID:  uuid.New(),
		Name:      normalized.name,
		Slug:      normalized.slug,
		Status:    persistence.TenantStatusActive,
		Tier:      normalized.tier,
		Settings:  input.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return Tenant{}, ErrConflict
		}
		return Tenant{}, err
	}

	if input.OwnerUserID != nil && s.bootstrap != nil {
		if err := s.bootstrap.BootstrapPrimary(ctx, created.TenantID, *input.OwnerUserID); err != nil {
			return Tenant{}, err
		}
	}

	return mapTenant(created), nil
}

func (s *service) Get(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) (Tenant, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return mapTenant(rec), nil
}

func (s *service) GetBySlug(ctx context.Context, actor requesttrace.Actor, slug string) (Tenant, error) {
	normalized, err := persistence.NormalizeSlug(slug)
	if err != nil {
		return Tenant{}, ErrNotFound
	}

	rec, err := s.repo.GetBySlug(ctx, normalized)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return mapTenant(rec), nil
}

func (s *service) Update(ctx context.Context, actor requesttrace.Actor, id uuid.UUID, input UpdateInput) (Tenant, error) {
	if !actor.IsAdmin {
		return Tenant{}, ErrForbidden
	}

	normalized, validationErr := s.validateUpdateInput(input)
	if validationErr != nil {
		return Tenant{}, validationErr
	}

	params := persistence.UpdateTenantParams{
		Name:     normalized.name,
		Status:   normalized.status,
		Tier:     normalized.tier,
		Settings: input.Settings,
	}

	rec, err := s.repo.Update(ctx, id, params)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			return Tenant{}, ErrNotFound
		case errors.Is(err, persistence.ErrConflict):
			return Tenant{}, ErrConflict
		default:
			return Tenant{}, err
		}
	}

	return mapTenant(rec), nil
}

func (s *service) Delete(ctx context.Context, actor requesttrace.Actor, id uuid.UUID) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}

	// Idempotent: deleting an absent or already-deleted tenant is a no-op.
	_, err := s.repo.SoftDelete(ctx, id)
	return err
}

type normalizedCreateInput struct {
	name string
	slug string
	tier string
}

type normalizedUpdateInput struct {
	name   *string
	status *string
	tier   *string
}

func (s *service) validateCreateInput(input CreateInput) (normalizedCreateInput, error) {
	errs := FieldErrors{}

	trimmedName := strings.TrimSpace(input.Name)
	if trimmedName == "" {
		errs.add("name", "name is required")
	} else if len(trimmedName) > maxNameLength {
		errs.add("name", "name exceeds 200 characters")
	}

	slug, err := persistence.NormalizeSlug(input.Slug)
	if err != nil {
		errs.add("slug", err.Error())
	}

	tier := strings.TrimSpace(input.Tier)
	if tier == "" {
		tier = "standard"
	}

	if err := s.settings.Validate(input.Settings); err != nil {
		errs.add("settings", err.Error())
	}

	if len(errs) > 0 {
		return normalizedCreateInput{}, &ValidationError{Fields: errs}
	}

	return normalizedCreateInput{name: trimmedName, slug: slug, tier: tier}, nil
}

func (s *service) validateUpdateInput(input UpdateInput) (normalizedUpdateInput, error) {
	errs := FieldErrors{}
	var normalized normalizedUpdateInput

	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		switch {
		case trimmed == "":
			errs.add("name", "name is required")
		case len(trimmed) > maxNameLength:
			errs.add("name", "name exceeds 200 characters")
		default:
			normalized.name = &trimmed
		}
	}

	if input.Status != nil {
		switch *input.Status {
		case persistence.TenantStatusActive, persistence.TenantStatusSuspended:
			normalized.status = input.Status
		default:
			errs.add("status", "status must be active or suspended")
		}
	}

	if input.Tier != nil {
		trimmed := strings.TrimSpace(*input.Tier)
		if trimmed == "" {
			errs.add("tier", "tier is required")
		} else {
			normalized.tier = &trimmed
		}
	}

	if input.Settings != nil {
		if err := s.settings.Validate(input.Settings); err != nil {
			errs.add("settings", err.Error())
		}
	}

	if input.Name == nil && input.Status == nil && input.Tier == nil && input.Settings == nil {
		errs.add("body", "at least one field must be provided")
	}

	if len(errs) > 0 {
		return normalizedUpdateInput{}, &ValidationError{Fields: errs}
	}

	return normalized, nil
}

func validateStatus(status string) error {
	switch status {
	case persistence.TenantStatusActive, persistence.TenantStatusSuspended:
		return nil
	default:
		return &ValidationError{Fields: FieldErrors{"status": []string{"status must be active or suspended"}}}
	}
}

func mapTenant(rec persistence.TenantRecord) Tenant {
	return Tenant{
		ID:        rec.TenantID,
		Name:      rec.Name,
		Slug:      rec.Slug,
		Status:    rec.Status,
		Tier:      rec.Tier,
		Settings:  rec.Settings,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = []string{message}
		return
	}
	f[field] = append(f[field], message)
}
