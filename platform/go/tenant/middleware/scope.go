package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	platformauth "github.com/caretrack-hq/caretrack/platform/go/auth"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// SelectorHeader names the explicit tenant selector header.
const SelectorHeader = "X-Tenant-ID"

// SelectorQueryParam names the explicit tenant selector query parameter.
const SelectorQueryParam = "tenant"

// WithScope resolves the request's tenant and stamps the Scope on the context.
// The explicit selector is taken from the route's tenantID parameter, then the
// X-Tenant-ID header, then the tenant query parameter; resolution then falls
// through the identity claim and the configured default per the resolver rules.
// A rejection (closed mode, nothing resolved) is a bare 404 with no tenant
// hints in the body.
func WithScope(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, _ := platformauth.IdentityFromContext(r.Context())

			scope, ok := resolver.Resolve(selectorFromRequest(r), ident)
			if !ok {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"title":  "Resource not found",
					"status": http.StatusNotFound,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(tenant.WithScope(r.Context(), scope)))
		})
	}
}

func selectorFromRequest(r *http.Request) string {
	if param := chi.URLParam(r, "tenantID"); strings.TrimSpace(param) != "" {
		return param
	}
	if header := r.Header.Get(SelectorHeader); strings.TrimSpace(header) != "" {
		return header
	}
	return r.URL.Query().Get(SelectorQueryParam)
}
