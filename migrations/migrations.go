// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the path passed to the iofs migration source.
const Dir = "."
