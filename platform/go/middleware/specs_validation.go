package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
)

// ValidateAuthenticationViaSwagger satisfies operations that declare bearerAuth
// security in the embedded OpenAPI document. It only enforces token presence;
// verification happens in the auth middleware before routing.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input != nil && input.SecuritySchemeName == "bearerAuth" {
		r := input.RequestValidationInput.Request
		if r == nil {
			return fmt.Errorf("no request in validation input")
		}
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fmt.Errorf("missing or invalid Authorization header")
		}
	}
	return nil
}
