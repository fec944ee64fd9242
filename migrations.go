package cms

import "embed"

// MigrationsDir is the root of the SQL migrations in GetMigrationsFS,
// with one directory per database driver
const MigrationsDir = "data/sql/migrations"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded SQL migrations
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
