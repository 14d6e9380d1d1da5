package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ctxKey string

const ctxIdentity ctxKey = "CARETRACK_IDENTITY"

// ErrUnauthenticated is returned when no valid identity can be derived from request credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the verified reference to a caller. It proves who the caller is
// and optionally which tenant their credentials declare; it carries no tenant
// scoping decision of its own.
type Identity struct {
	UserID           string
	Email            string
	EmailVerified    bool
	FullName         *string
	DeclaredTenantID *string
	RoleClaims       []string
	IsAdmin          bool
}

// IdentityFromContext extracts the verified identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	v := ctx.Value(ctxIdentity)
	if v == nil {
		return nil, false
	}
	ident, ok := v.(*Identity)
	return ident, ok
}

// WithIdentity returns a derived context carrying the identity. Exposed for tests and CLI tooling.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, ident)
}

// RequireIdentity returns the identity on the context or ErrUnauthenticated.
func RequireIdentity(ctx context.Context) (*Identity, error) {
	ident, ok := IdentityFromContext(ctx)
	if !ok || ident == nil {
		return nil, ErrUnauthenticated
	}
	return ident, nil
}

// VerifyFunc validates the incoming bearer token and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into an Identity.
type ExtractFunc func(claims map[string]interface{}) (*Identity, error)

// Middleware parses the request credentials and stores the resulting Identity on
// the context. Requests without a token pass through anonymously; the decision
// whether anonymity is acceptable belongs to downstream handlers.
func Middleware(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.Middleware: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultIdentityExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractBearerToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ident, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// DefaultIdentityExtractor converts standard claims into an Identity.
func DefaultIdentityExtractor(claims map[string]interface{}) (*Identity, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	userID := fallbackStringClaim(claims, []string{"uid", "user_id", "sub"}, "")
	if userID == "" {
		return nil, errors.New("missing subject claim")
	}

	ident := &Identity{
		UserID:           userID,
		Email:            stringClaim(claims, "email"),
		EmailVerified:    boolClaim(claims, "email_verified"),
		FullName:         optionalStringClaim(claims, "name"),
		DeclaredTenantID: declaredTenantClaim(claims),
		RoleClaims:       stringSliceClaim(claims, "roles"),
		IsAdmin:          boolClaim(claims, "isAdmin"),
	}

	return ident, nil
}

// declaredTenantClaim accepts either a top-level "tenant" claim or the nested
// firebase tenancy claim, whichever the identity provider supplies.
func declaredTenantClaim(claims map[string]interface{}) *string {
	if v, ok := claims["tenant"].(string); ok && v != "" {
		return &v
	}

	fb, ok := claims["firebase"].(map[string]interface{})
	if !ok {
		return nil
	}
	if v, ok := fb["tenant"].(string); ok && v != "" {
		return &v
	}
	return nil
}

func boolClaim(claims map[string]interface{}, key string) bool {
	if v, ok := claims[key]; ok {
		if b, valid := v.(bool); valid {
			return b
		}
	}
	return false
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if s, valid := v.(string); valid {
			return s
		}
	}
	return ""
}

func optionalStringClaim(claims map[string]interface{}, key string) *string {
	if v, ok := claims[key]; ok {
		if s, valid := v.(string); valid && s != "" {
			return &s
		}
	}
	return nil
}

func stringSliceClaim(claims map[string]interface{}, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	switch typed := raw.(type) {
	case []string:
		return append([]string(nil), typed...)
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, valid := item.(string); valid && s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

func fallbackStringClaim(claims map[string]interface{}, keys []string, fallback string) string {
	for _, key := range keys {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return fallback
}
