package tenant

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack-hq/caretrack/platform/go/auth"
)

// FallbackMode controls what happens when neither an explicit selector nor an
// identity claim yields a tenant.
type FallbackMode string

const (
	// FallbackClosed rejects the request instead of falling through to the
	// default tenant. Preferred: a populated default tenant would turn a
	// resolution failure into a silent cross-tenant read.
	FallbackClosed FallbackMode = "closed"
	// FallbackOpen resolves to the configured default tenant. Only for
	// deployments with an explicit anonymous/demo tenant.
	FallbackOpen FallbackMode = "open"
)

// Resolver determines the authoritative tenant id for a request. It never
// trusts the resolved id to exist; the data access layer's first scoped query
// reports absence as NotFound.
type Resolver struct {
	defaultTenantID uuid.UUID
	mode            FallbackMode
	logger          *zap.Logger
}

// ResolverConfig wires the resolver.
type ResolverConfig struct {
	DefaultTenantID uuid.UUID
	Mode            FallbackMode
}

// NewResolver constructs a Resolver. The logger is required because discarded
// selectors must leave an audit trail even though resolution never fails.
func NewResolver(cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		panic("tenant resolver: logger is required")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = FallbackClosed
	}
	return &Resolver{defaultTenantID: cfg.DefaultTenantID, mode: mode, logger: logger}
}

// Resolve applies the precedence rules: explicit selector, identity claim,
// configured default. A malformed selector is discarded with an audit log and
// resolution falls through to the next rule; Resolve itself never errors. The
// boolean reports whether any rule produced a tenant; it is false only in
// closed mode with no default configured, which callers must treat as a
// rejection.
func (r *Resolver) Resolve(selector string, ident *auth.Identity) (Scope, bool) {
	if id, ok := r.parseSelector(selector, "request"); ok {
		return Scope{TenantID: id}, true
	}

	if ident != nil && ident.DeclaredTenantID != nil {
		if id, ok := r.parseSelector(*ident.DeclaredTenantID, "claim"); ok {
			return Scope{TenantID: id}, true
		}
	}

	if r.mode == FallbackClosed || r.defaultTenantID == uuid.Nil {
		return Scope{}, false
	}

	r.logger.Info("tenant resolution fell back to default tenant",
		zap.String("tenant_id", r.defaultTenantID.String()))
	return Scope{TenantID: r.defaultTenantID}, true
}

func (r *Resolver) parseSelector(raw, source string) (uuid.UUID, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(trimmed)
	if err != nil || id == uuid.Nil {
		r.logger.Warn("discarding malformed tenant selector",
			zap.String("source", source),
			zap.String("discarded_selector", trimmed))
		return uuid.Nil, false
	}

	return id, true
}
