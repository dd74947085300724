package migrations

import "embed"

// FS contiene las migraciones SQL de goose.
//
//go:embed *.sql
var FS embed.FS
