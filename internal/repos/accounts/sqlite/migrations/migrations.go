// Package migrations embeds the SQLite schema for the accounts store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
