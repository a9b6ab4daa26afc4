// Package migrations embeds the payroll and tax schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
