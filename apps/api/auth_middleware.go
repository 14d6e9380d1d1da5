package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/caretrack-hq/caretrack/platform/go/auth"
	"github.com/caretrack-hq/caretrack/platform/go/gcp"
)

// buildAuthMiddleware wires token verification for the configured provider.
// The middleware only establishes identity; tenant resolution happens later in
// the scope middleware.
func buildAuthMiddleware(ctx context.Context, cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "firebase":
		_, fbAuth, err := gcp.InitFirebaseAuth(ctx)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}

	return platformauth.Middleware(verify, platformauth.DefaultIdentityExtractor)
}
