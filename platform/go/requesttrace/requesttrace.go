package requesttrace

import (
	"context"
	"errors"

	"github.com/google/uuid"

	platformauth "github.com/caretrack-hq/caretrack/platform/go/auth"
)

type contextKey string

const ctxAuditInfo contextKey = "CARETRACK_REQUEST_TRACE"

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// Actor captures request-scoped metadata needed for traceability and for the
// membership permission checks. UserID is set only when ActorKind is user;
// IsAdmin mirrors the platform-admin claim.
type Actor struct {
	Kind      ActorKind
	UserID    uuid.UUID
	Email     string
	IsAdmin   bool
	RequestID string
}

// IntoContext stores the Actor in the provided context.
func IntoContext(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, actor)
}

// FromContext extracts the Actor from context, returning false when not present.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return Actor{}, false
	}

	actor, ok := v.(Actor)
	return actor, ok
}

// FromContextOrAnonymous returns the Actor stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) Actor {
	if actor, ok := FromContext(ctx); ok {
		return actor
	}
	return Anonymous("")
}

// Anonymous builds an Actor for unauthenticated requests.
func Anonymous(requestID string) Actor {
	return Actor{Kind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an Actor for CLI and background tooling.
func System(requestID string) Actor {
	return Actor{Kind: ActorKindSystem, IsAdmin: true, RequestID: requestID}
}

// FromIdentity builds an Actor from verified credentials.
func FromIdentity(ident *platformauth.Identity, requestID string) (Actor, error) {
	if ident == nil {
		return Actor{}, errors.New("identity is required")
	}

	userID, err := uuid.Parse(ident.UserID)
	if err != nil {
		return Actor{}, errors.New("identity subject is not a valid user id")
	}

	return Actor{
		Kind:      ActorKindUser,
		UserID:    userID,
		Email:     ident.Email,
		IsAdmin:   ident.IsAdmin,
		RequestID: requestID,
	}, nil
}
