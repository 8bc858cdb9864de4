// Package migrations embeds the SQL schema migrations applied by the
// migrate command and by serve --auto-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
