// Package migrations embeds the SQL schema of the on-disk vector index.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
