// Package database opens the SQLite file behind the thermostat inventory
// and keeps its schema current.
//
// Open configures go-sqlite3 through its DSN (busy timeout, foreign keys,
// optional WAL journal) and holds a single pooled connection. Migrate
// applies the VERSION_name.up.sql files registered with UseMigrations,
// each in its own transaction, and records a checksum per version so
// edits to applied migrations are caught. MigrateDown reverts the newest
// one when it has a .down.sql partner.
//
//	db, err := database.Open(database.Config{Path: "data/fhz2mqtt.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx)
package database
