// Package migrations embeds the schema files into the binary.
//
// SQLite migrations sit at the package root and are applied forward-only by
// the database package's runner. PostgreSQL migrations live under postgres/
// in goose format, where the goose CLI handles rollbacks.
package migrations

import (
	"embed"

	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
)

//go:embed *.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

func init() {
	database.MigrationsFS = sqliteFS
	database.MigrationsDir = "."
	database.PostgresMigrationsFS = postgresFS
	database.PostgresMigrationsDir = "postgres"
}
