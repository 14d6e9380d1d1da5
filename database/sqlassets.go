package sqlassets

import _ "embed"

//go:embed schema/core/tenants.sql
var TenantsSQL string

//go:embed schema/core/users.sql
var UsersSQL string

//go:embed schema/core/memberships.sql
var MembershipsSQL string

//go:embed schema/core/invitations.sql
var InvitationsSQL string

//go:embed schema/tenant_settings.schema.json
var TenantSettingsSchemaJSON string

// CoreSchemaStatements returns the DDL for the shared application schema in
// dependency order. Callers apply these once at startup via ApplyCoreSchema.
func CoreSchemaStatements() []string {
	return []string{TenantsSQL, UsersSQL, MembershipsSQL, InvitationsSQL}
}
