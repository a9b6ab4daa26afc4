// Package migrations embeds the schema of the core database (users,
// organizations, memberships), shared by organization-service and auth-service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
