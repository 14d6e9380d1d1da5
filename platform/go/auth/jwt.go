package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// ExtractBearerToken pulls the bearer token from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// FirebaseTokenVerifier returns a VerifyFunc backed by the Firebase Admin SDK.
func FirebaseTokenVerifier(client *firebaseauth.Client) VerifyFunc {
	if client == nil {
		panic("auth.FirebaseTokenVerifier: client must not be nil")
	}

	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		verified, err := client.VerifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}

		claims := make(map[string]interface{}, len(verified.Claims)+2)
		for k, v := range verified.Claims {
			claims[k] = v
		}
		claims["sub"] = verified.UID
		if verified.Firebase.Tenant != "" {
			claims["tenant"] = verified.Firebase.Tenant
		}
		return claims, nil
	}
}

// UnsignedTokenVerifier decodes the payload of an unsigned JWT without any
// signature check. For local development and CI only.
func UnsignedTokenVerifier() VerifyFunc {
	return func(_ context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	payload := parts[1]
	switch len(payload) % 4 {
	case 2:
		payload += "=="
	case 3:
		payload += "="
	}

	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}
