// Package migrations embeds the goose SQL migrations for storage/postgres.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
