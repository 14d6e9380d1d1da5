// Package contracts embeds the OpenAPI documents the api server validates
// requests against.
package contracts

import _ "embed"

//go:embed tenants.yaml
var TenantsYAML []byte

//go:embed memberships.yaml
var MembershipsYAML []byte
