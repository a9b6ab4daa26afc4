// Package migrations embeds the ledger transaction schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
