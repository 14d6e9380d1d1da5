package devtoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caretrack-hq/caretrack/platform/go/auth"
	"github.com/caretrack-hq/caretrack/platform/go/auth/devtoken"
)

func TestBuildUnsignedTokenRoundTripsThroughDevVerifier(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	token, err := devtoken.BuildUnsignedToken(devtoken.Params{
		ProjectID:     "caretrack-local",
		Tenant:        "7cf0c10f-64cb-4e3f-9c29-5b6be0b1a6a9",
		UserID:        "user-1",
		Email:         "dev@example.com",
		Name:          "Dev User",
		EmailVerified: true,
		IsAdmin:       true,
		Roles:         []string{"admin"},
	}, now)
	require.NoError(t, err)

	claims, err := auth.UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)

	ident, err := auth.DefaultIdentityExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "user-1", ident.UserID)
	require.Equal(t, "dev@example.com", ident.Email)
	require.True(t, ident.EmailVerified)
	require.True(t, ident.IsAdmin)
	require.Equal(t, []string{"admin"}, ident.RoleClaims)
	require.NotNil(t, ident.DeclaredTenantID)
	require.Equal(t, "7cf0c10f-64cb-4e3f-9c29-5b6be0b1a6a9", *ident.DeclaredTenantID)

	require.EqualValues(t, now.Unix(), claims["iat"])
	require.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])
	require.Equal(t, "https://securetoken.google.com/caretrack-local", claims["iss"])
	require.Equal(t, "caretrack-local", claims["aud"])
}

func TestBuildUnsignedTokenOmitsEmptyOptionalClaims(t *testing.T) {
	t.Parallel()

	token, err := devtoken.BuildUnsignedToken(devtoken.Params{
		ProjectID: "caretrack-local",
		UserID:    "user-2",
		Email:     "plain@example.com",
	}, time.Now().UTC())
	require.NoError(t, err)

	claims, err := auth.UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)
	require.NotContains(t, claims, "tenant")
	require.NotContains(t, claims, "roles")
}

func TestBuildUnsignedTokenValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	_, err := devtoken.BuildUnsignedToken(devtoken.Params{UserID: "u", Email: "e@example.com"}, time.Time{})
	require.Error(t, err, "project id is required")

	_, err = devtoken.BuildUnsignedToken(devtoken.Params{ProjectID: "p", Email: "e@example.com"}, time.Time{})
	require.Error(t, err, "user id is required")

	_, err = devtoken.BuildUnsignedToken(devtoken.Params{ProjectID: "p", UserID: "u"}, time.Time{})
	require.Error(t, err, "email is required")
}
