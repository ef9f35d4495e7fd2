// Package migrations holds the SQL schema of the thermostat inventory.
// Importing it for side effects points database.Migrate at these files.
package migrations

import (
	"embed"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.UseMigrations(files, ".")
}
