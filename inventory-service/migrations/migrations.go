// Package migrations embeds the inventory schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
