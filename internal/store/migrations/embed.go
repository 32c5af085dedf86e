package migrations

import "embed"

// FS exposes embedded SQL migration files ordered lexicographically.
//
//go:embed *.sql
var FS embed.FS
