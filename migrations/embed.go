// Package migrations embeds the kit's SQL schema for the goose-based
// migration runner in pkg/pg.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
