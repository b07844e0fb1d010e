// Package migrations embeds the catalog schema so the binaries apply it
// regardless of their working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
