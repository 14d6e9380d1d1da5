package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/caretrack-hq/caretrack/domains/memberships/be/repo"
	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
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

// Domain-level error sentinel values. ErrNotFound covers absent, soft-deleted
// and other-tenant resources alike; ErrInvalidInvitation covers missing,
// expired and already-accepted tokens alike.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("membership conflict")
	ErrForbidden         = errors.New("operation not permitted")
	ErrInvalidInvitation = errors.New("invitation is not valid")
)

// Roles assignable through invitations and role changes. The primary role is
// established only at tenant bootstrap and is immutable afterwards.
var assignableRoles = map[string]bool{
	persistence.RoleAdmin:  true,
	persistence.RoleMember: true,
	persistence.RoleViewer: true,
}

// Member is a tenant membership joined with the user's identity fields.
type Member struct {
	MembershipID uuid.UUID
	UserID       uuid.UUID
	Email        string
	FullName     string
	Role         string
	IsPrimary    bool
	JoinedAt     time.Time
}

// Invitation is the listing view of an invitation. Token is populated only on
// the value returned from CreateInvitation.
type Invitation struct {
	ID        uuid.UUID
	Email     string
	Role      string
	Status    persistence.InvitationStatus
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateInvitationInput defines the payload to invite a user.
type CreateInvitationInput struct {
	Email string
	Role  string
}

// AcceptInvitationInput carries the acceptance credentials.
type AcceptInvitationInput struct {
	Token         string
	FullName      string
	CredentialRef string
}

// AcceptInvitationResult reports the membership created by an acceptance.
type AcceptInvitationResult struct {
	Member   Member
	TenantID uuid.UUID
}

// AddMemberInput defines the payload to attach an existing user directly.
type AddMemberInput struct {
	UserID    uuid.UUID
	Role      string
	IsPrimary bool
}

// Service exposes the membership lifecycle operations. Scoped operations take
// the resolved tenant scope explicitly; AcceptInvitation is scope-free because
// the token itself designates the tenant.
type Service interface {
	CreateInvitation(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, input CreateInvitationInput) (Invitation, error)
	ListInvitations(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) ([]Invitation, error)
	AcceptInvitation(ctx context.Context, input AcceptInvitationInput) (AcceptInvitationResult, error)
	AddMember(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, input AddMemberInput) (Member, error)
	ListMembers(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) ([]Member, error)
	UpdateRole(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, userID uuid.UUID, role string) (Member, error)
	RemoveMember(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, userID uuid.UUID) error
	BootstrapPrimary(ctx context.Context, tenantID, ownerUserID uuid.UUID) error
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a membership lifecycle Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("memberships repo is required")
	}
	return &service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *service) CreateInvitation(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, input CreateInvitationInput) (Invitation, error) {
	if err := s.requireManager(ctx, scope, actor); err != nil {
		return Invitation{}, err
	}
	if err := s.requireActiveTenant(ctx, scope); err != nil {
		return Invitation{}, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	errs := FieldErrors{}
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") {
		errs.add("email", "a valid email address is required")
	}
	if !assignableRoles[input.Role] {
		errs.add("role", "role must be one of admin, member, viewer")
	}
	if len(errs) > 0 {
		return Invitation{}, &ValidationError{Fields: errs}
	}

	rec, err := s.repo.CreateInvitation(ctx, scope, persistence.CreateInvitationParams{
		Email:     email,
		Role:      input.Role,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return Invitation{}, ErrConflict
		}
		return Invitation{}, err
	}

	return s.mapInvitation(rec), nil
}

func (s *service) ListInvitations(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) ([]Invitation, error) {
	if err := s.requireManager(ctx, scope, actor); err != nil {
		return nil, err
	}

	records, err := s.repo.ListInvitations(ctx, scope)
	if err != nil {
		return nil, err
	}

	invitations := make([]Invitation, 0, len(records))
	for _, rec := range records {
		rec.Token = ""
		invitations = append(invitations, s.mapInvitation(rec))
	}
	return invitations, nil
}

func (s *service) AcceptInvitation(ctx context.Context, input AcceptInvitationInput) (AcceptInvitationResult, error) {
	if strings.TrimSpace(input.Token) == "" {
		return AcceptInvitationResult{}, ErrInvalidInvitation
	}

	result, err := s.repo.AcceptInvitation(ctx, persistence.AcceptParams{
		Token:         input.Token,
		FullName:      strings.TrimSpace(input.FullName),
		CredentialRef: input.CredentialRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrInvalidInvitation):
			return AcceptInvitationResult{}, ErrInvalidInvitation
		case errors.Is(err, persistence.ErrConflict):
			return AcceptInvitationResult{}, ErrConflict
		default:
			return AcceptInvitationResult{}, err
		}
	}

	return AcceptInvitationResult{
		TenantID: result.Membership.TenantID,
		Member:   mapMember(result.Membership, result.User),
	}, nil
}

func (s *service) AddMember(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, input AddMemberInput) (Member, error) {
	if err := s.requireManager(ctx, scope, actor); err != nil {
		return Member{}, err
	}
	if err := s.requireActiveTenant(ctx, scope); err != nil {
		return Member{}, err
	}

	errs := FieldErrors{}
	if input.UserID == uuid.Nil {
		errs.add("userId", "userId is required")
	}
	switch {
	case input.IsPrimary && input.Role != persistence.RolePrimary:
		errs.add("role", "the primary member must carry the primary role")
	case !input.IsPrimary && !assignableRoles[input.Role]:
		errs.add("role", "role must be one of admin, member, viewer")
	}
	if len(errs) > 0 {
		return Member{}, &ValidationError{Fields: errs}
	}

	rec, err := s.repo.AddMembership(ctx, scope, persistence.AddMembershipParams{
		UserID:    input.UserID,
		Role:      input.Role,
		IsPrimary: input.IsPrimary,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return Member{}, ErrConflict
		}
		return Member{}, err
	}

	return s.joinMember(ctx, rec)
}

func (s *service) ListMembers(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) ([]Member, error) {
	if err := s.requireMember(ctx, scope, actor); err != nil {
		return nil, err
	}

	records, err := s.repo.ListMemberships(ctx, scope)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.UserID)
	}
	users, err := s.repo.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(records))
	for _, rec := range records {
		members = append(members, mapMember(rec, users[rec.UserID]))
	}
	return members, nil
}

func (s *service) UpdateRole(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, userID uuid.UUID, role string) (Member, error) {
	if err := s.requireManager(ctx, scope, actor); err != nil {
		return Member{}, err
	}
	if !assignableRoles[role] {
		return Member{}, &ValidationError{Fields: FieldErrors{"role": []string{"role must be one of admin, member, viewer"}}}
	}

	target, err := s.repo.Membership(ctx, scope, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}

	// The primary membership's role never changes through the ordinary API.
	if target.IsPrimary {
		return Member{}, ErrForbidden
	}

	updated, err := s.repo.UpdateMembershipRole(ctx, scope, target.ID, role)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}

	return s.joinMember(ctx, updated)
}

func (s *service) RemoveMember(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor, userID uuid.UUID) error {
	if err := s.requireManager(ctx, scope, actor); err != nil {
		return err
	}

	target, err := s.repo.Membership(ctx, scope, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// The primary membership cannot be removed through the ordinary API.
	if target.IsPrimary {
		return ErrForbidden
	}

	if _, err := s.repo.RemoveMembership(ctx, scope, target.ID); err != nil {
		return err
	}
	return nil
}

// BootstrapPrimary establishes the founding primary membership for a tenant.
// Used by tenant creation and the admin CLI, never via the HTTP surface.
func (s *service) BootstrapPrimary(ctx context.Context, tenantID, ownerUserID uuid.UUID) error {
	scope := tenant.Scope{TenantID: tenantID}

	_, err := s.repo.AddMembership(ctx, scope, persistence.AddMembershipParams{
		UserID:    ownerUserID,
		Role:      persistence.RolePrimary,
		IsPrimary: true,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// requireManager admits platform admins and tenant members holding the primary
// or admin role. Everyone else is Forbidden, members of other tenants included.
func (s *service) requireManager(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) error {
	if actor.IsAdmin {
		return nil
	}
	if actor.Kind != requesttrace.ActorKindUser {
		return ErrForbidden
	}

	membership, err := s.repo.Membership(ctx, scope, actor.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}

	if membership.Role != persistence.RolePrimary && membership.Role != persistence.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// requireMember admits platform admins and any live member of the tenant.
func (s *service) requireMember(ctx context.Context, scope tenant.Scope, actor requesttrace.Actor) error {
	if actor.IsAdmin {
		return nil
	}
	if actor.Kind != requesttrace.ActorKindUser {
		return ErrForbidden
	}

	if _, err := s.repo.Membership(ctx, scope, actor.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

// requireActiveTenant rejects writes into suspended or absent tenants. Absence
// reads as NotFound; suspension as Forbidden.
func (s *service) requireActiveTenant(ctx context.Context, scope tenant.Scope) error {
	rec, err := s.repo.TenantByID(ctx, scope.TenantID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if rec.Status != persistence.TenantStatusActive {
		return ErrForbidden
	}
	return nil
}

func (s *service) joinMember(ctx context.Context, rec persistence.MembershipRecord) (Member, error) {
	users, err := s.repo.UsersByIDs(ctx, []uuid.UUID{rec.UserID})
	if err != nil {
		return Member{}, err
	}
	return mapMember(rec, users[rec.UserID]), nil
}

func (s *service) mapInvitation(rec persistence.InvitationRecord) Invitation {
	return Invitation{
		ID:        rec.ID,
		Email:     rec.Email,
		Role:      rec.Role,
		Status:    rec.StatusAt(s.now().UTC()),
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
}

func mapMember(rec persistence.MembershipRecord, user persistence.UserRecord) Member {
	return Member{
		MembershipID: rec.ID,
		UserID:       rec.UserID,
		Email:        user.Email,
		FullName:     user.FullName,
		Role:         rec.Role,
		IsPrimary:    rec.IsPrimary,
		JoinedAt:     rec.JoinedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = []string{message}
		return
	}
	f[field] = append(f[field], message)
}
