package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Scope captures the resolved tenant for a request. It is attached to the
// context by middleware once resolution has run; every data access primitive
// requires it, so no query can execute without first resolving a tenant.
type Scope struct {
	TenantID uuid.UUID
}

type ctxKey string

const scopeKey ctxKey = "CARETRACK_TENANT_SCOPE"

// WithScope returns a derived context carrying the tenant Scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// FromContext extracts the tenant Scope and a boolean indicating presence.
func FromContext(ctx context.Context) (Scope, bool) {
	v := ctx.Value(scopeKey)
	if v == nil {
		return Scope{}, false
	}

	scope, ok := v.(Scope)
	return scope, ok
}
