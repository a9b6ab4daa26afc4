// Package migrations embeds the invoice schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
