// Package migrations embeds SQL migration files for goose.
//
// Migration files follow the naming convention: YYYYMMDDHHMMSS_description.sql
// They are applied in order during database initialization. Statements are
// additive (create table / add column if not exists) so the service can run
// against a database at any point along its migration history.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
