// Package migrations embeds the ledger account schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
