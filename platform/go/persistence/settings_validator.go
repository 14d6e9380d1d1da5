package persistence

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	sqlassets "github.com/caretrack-hq/caretrack/database"
)

// SettingsValidator checks tenant settings documents against the embedded
// schema before they reach the database. Compile once, validate per request.
type SettingsValidator struct {
	schema *jsonschema.Schema
}

// NewSettingsValidator compiles the embedded tenant settings schema.
func NewSettingsValidator() (*SettingsValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tenant_settings.schema.json", strings.NewReader(sqlassets.TenantSettingsSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add tenant settings schema: %w", err)
	}
	schema, err := compiler.Compile("tenant_settings.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile tenant settings schema: %w", err)
	}
	return &SettingsValidator{schema: schema}, nil
}

// Validate reports schema violations in the given settings document. A nil
// document is valid and means "no overrides".
func (v *SettingsValidator) Validate(settings map[string]any) error {
	if settings == nil {
		return nil
	}
	if err := v.schema.Validate(map[string]any(settings)); err != nil {
		var verr *jsonschema.ValidationError
		if ok := asValidationError(err, &verr); ok {
			return fmt.Errorf("invalid tenant settings: %s", leafMessage(verr))
		}
		return fmt.Errorf("invalid tenant settings: %w", err)
	}
	return nil
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	verr, ok := err.(*jsonschema.ValidationError)
	if ok {
		*target = verr
	}
	return ok
}

// leafMessage walks to the most specific cause, which reads better in API
// responses than the root "doesn't validate" message.
func leafMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation != "" {
		return fmt.Sprintf("%s: %s", verr.InstanceLocation, verr.Message)
	}
	return verr.Message
}
