package db

import "embed"

// migrationFS embeds the goose SQL migrations into the binary so the journal
// can be created anywhere without migration files on disk.
//
//go:embed migrations/*.sql
var migrationFS embed.FS
