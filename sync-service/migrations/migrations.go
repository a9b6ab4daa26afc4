// Package migrations embeds the offline sync queue schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
