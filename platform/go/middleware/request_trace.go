package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/caretrack-hq/caretrack/platform/go/auth"
	platformlogging "github.com/caretrack-hq/caretrack/platform/go/logging"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

// RequestTrace populates the context with a request-scoped Actor so services can
// run permission checks and stamp audit fields. It must run after the auth
// middleware so the identity is available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		var actor requesttrace.Actor
		if ident, ok := platformauth.IdentityFromContext(r.Context()); ok && ident != nil {
			var err error
			actor, err = requesttrace.FromIdentity(ident, requestID)
			if err != nil {
				if logger != nil {
					logger.Error("build actor from identity", zap.Error(err))
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else {
			actor = requesttrace.Anonymous(requestID)
		}

		ctx := requesttrace.IntoContext(r.Context(), actor)
		if logger != nil {
			fields := []zap.Field{zap.String("actor_kind", string(actor.Kind))}
			if actor.Kind == requesttrace.ActorKindUser {
				fields = append(fields, zap.String("user_id", actor.UserID.String()))
			}
			ctx = platformlogging.WithLogger(ctx, logger.With(fields...))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
