// Package migrations embeds the goose migration files so the binaries can
// run them without a copy of the repository on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
