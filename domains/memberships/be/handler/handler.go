package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack-hq/caretrack/domains/memberships/be/service"
	platformlogging "github.com/caretrack-hq/caretrack/platform/go/logging"
	"github.com/caretrack-hq/caretrack/platform/go/problem"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

type operation string

const (
	createInvitationOperation operation = "createInvitation"
	listInvitationsOperation  operation = "listInvitations"
	acceptInvitationOperation operation = "acceptInvitation"
	listMembersOperation      operation = "listMembers"
	updateRoleOperation       operation = "updateMemberRole"
	removeMemberOperation     operation = "removeMember"
)

// Handler exposes the membership lifecycle over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("memberships service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// InvitationRoutes returns the invitation router, mounted under
// /tenants/{tenantID}/invitations behind the scope middleware.
func (h *Handler) InvitationRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.createInvitation)
	r.Get("/", h.listInvitations)
	return r
}

// MemberRoutes returns the member router, mounted under
// /tenants/{tenantID}/users behind the scope middleware.
func (h *Handler) MemberRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listMembers)
	r.Patch("/{userID}", h.updateRole)
	r.Delete("/{userID}", h.removeMember)
	return r
}

type invitationResponse struct {
	InvitationID uuid.UUID `json:"invitationId"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Token        string    `json:"token,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

type memberResponse struct {
	MembershipID uuid.UUID `json:"membershipId"`
	UserID       uuid.UUID `json:"userId"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName,omitempty"`
	Role         string    `json:"role"`
	IsPrimary    bool      `json:"isPrimary"`
	JoinedAt     time.Time `json:"joinedAt"`
}

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type acceptInvitationRequest struct {
	Token         string `json:"token"`
	FullName      string `json:"fullName"`
	CredentialRef string `json:"credentialRef"`
}

type acceptInvitationResponse struct {
	TenantID   uuid.UUID      `json:"tenantId"`
	Membership memberResponse `json:"membership"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	scope, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, createInvitationOperation)
		return
	}

	var body createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", "request body must be valid JSON", problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	invitation, err := h.svc.CreateInvitation(ctx, scope, actor, service.CreateInvitationInput{
		Email: body.Email,
		Role:  body.Role,
	})
	if err != nil {
		h.writeError(ctx, w, err, createInvitationOperation)
		return
	}

	writeJSON(w, http.StatusCreated, toAPIInvitation(invitation))
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	scope, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, listInvitationsOperation)
		return
	}

	invitations, err := h.svc.ListInvitations(ctx, scope, actor)
	if err != nil {
		h.writeError(ctx, w, err, listInvitationsOperation)
		return
	}

	items := make([]invitationResponse, 0, len(invitations))
	for _, invitation := range invitations {
		items = append(items, toAPIInvitation(invitation))
	}
	writeJSON(w, http.StatusOK, items)
}

// AcceptInvitation implements POST /invitations/accept. It is mounted outside
// the scope middleware: the token designates the tenant.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body acceptInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", "request body must be valid JSON", problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	result, err := h.svc.AcceptInvitation(ctx, service.AcceptInvitationInput{
		Token:         body.Token,
		FullName:      body.FullName,
		CredentialRef: body.CredentialRef,
	})
	if err != nil {
		h.writeError(ctx, w, err, acceptInvitationOperation)
		return
	}

	writeJSON(w, http.StatusOK, acceptInvitationResponse{
		TenantID:   result.TenantID,
		Membership: toAPIMember(result.Member),
	})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	scope, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, listMembersOperation)
		return
	}

	members, err := h.svc.ListMembers(ctx, scope, actor)
	if err != nil {
		h.writeError(ctx, w, err, listMembersOperation)
		return
	}

	items := make([]memberResponse, 0, len(members))
	for _, member := range members {
		items = append(items, toAPIMember(member))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	scope, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, updateRoleOperation)
		return
	}

	userID, ok := userIDParam(r)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, updateRoleOperation)
		return
	}

	var body updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Build("Invalid request body", "request body must be valid JSON", problem.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	member, err := h.svc.UpdateRole(ctx, scope, actor, userID, body.Role)
	if err != nil {
		h.writeError(ctx, w, err, updateRoleOperation)
		return
	}

	writeJSON(w, http.StatusOK, toAPIMember(member))
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requesttrace.FromContextOrAnonymous(ctx)

	scope, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, removeMemberOperation)
		return
	}

	userID, ok := userIDParam(r)
	if !ok {
		h.writeError(ctx, w, service.ErrNotFound, removeMemberOperation)
		return
	}

	if err := h.svc.RemoveMember(ctx, scope, actor, userID); err != nil {
		h.writeError(ctx, w, err, removeMemberOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func toAPIInvitation(invitation service.Invitation) invitationResponse {
	return invitationResponse{
		InvitationID: invitation.ID,
		Email:        invitation.Email,
		Role:         invitation.Role,
		Status:       string(invitation.Status),
		Token:        invitation.Token,
		ExpiresAt:    invitation.ExpiresAt,
		CreatedAt:    invitation.CreatedAt,
	}
}

func toAPIMember(member service.Member) memberResponse {
	return memberResponse{
		MembershipID: member.MembershipID,
		UserID:       member.UserID,
		Email:        member.Email,
		FullName:     member.FullName,
		Role:         member.Role,
		IsPrimary:    member.IsPrimary,
		JoinedAt:     member.JoinedAt,
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
		logger.Error("membership operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("membership resource not found", fields...)
	default:
		logger.Warn("membership request rejected", append(fields, zap.Error(err))...)
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
	// Invalid invitations read as plain not-found: the body never says whether
	// the token was wrong, expired, or already used.
	case errors.Is(err, service.ErrInvalidInvitation), errors.Is(err, service.ErrNotFound):
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
			"", // no hint about which resource collided
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
