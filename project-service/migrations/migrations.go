// Package migrations embeds the project and resource scheduling schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
