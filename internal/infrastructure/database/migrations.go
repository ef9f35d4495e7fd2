package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNoDownMigration is returned by MigrateDown when the newest applied
	// migration has no .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")

	// ErrMigrationChanged is returned by Migrate when an applied migration's
	// up SQL no longer matches what was recorded.
	ErrMigrationChanged = errors.New("database: applied migration was modified")

	// ErrUnknownMigration is returned by MigrateDown when the newest applied
	// version has no file in the migration source.
	ErrUnknownMigration = errors.New("database: applied migration not found")
)

// migrationFile matches VERSION[_name].(up|down).sql where VERSION is
// YYYYMMDD_HHMMSS.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})(?:_(\w+))?\.(up|down)\.sql$`)

var (
	migrationSource fs.FS
	migrationDir    = "."
)

// UseMigrations sets where Migrate reads its .sql files from. Package
// migrations calls it at init with its embedded files.
func UseMigrations(fsys fs.FS, dir string) {
	migrationSource, migrationDir = fsys, dir
}

// Migration is one schema step loaded from the migration source.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

func (m Migration) checksum() string {
	sum := sha256.Sum256([]byte(m.UpSQL))
	return hex.EncodeToString(sum[:])
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// MigrationStatus lists what has been applied and what is still pending,
// both oldest first.
type MigrationStatus struct {
	Applied []AppliedMigration
	Pending []Migration
}

// Version returns the newest applied version, or "" for an empty schema.
func (s MigrationStatus) Version() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	applied_at TEXT NOT NULL
)`

// Migrate brings the schema up to date.
//
// Every pending migration runs in its own transaction, oldest first. A
// failing migration is rolled back and stops the run; the ones before it
// stay applied. Applied migrations whose SQL has since been edited are
// refused with ErrMigrationChanged before anything runs.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: Wrapped cause naming the failing migration
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	if err := verifyApplied(status.Applied); err != nil {
		return err
	}

	for _, m := range status.Pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
				m.Version, m.Name, m.checksum(), time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the newest applied migration. It does nothing on an
// empty schema.
func (db *DB) MigrateDown(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	newest := status.Version()
	if newest == "" {
		return nil
	}

	all, err := loadMigrations()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == newest })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, newest)
	}
	m := all[i]
	if m.DownSQL == "" {
		return fmt.Errorf("%w: %s", ErrNoDownMigration, m.Version)
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("reverting migration %s: %w", m.Version, err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
}

// MigrationStatus compares schema_migrations with the migration source.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	var status MigrationStatus
	if _, err := db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return status, fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return status, err
	}
	all, err := loadMigrations()
	if err != nil {
		return status, err
	}

	byVersion := make(map[string]Migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}
	for _, a := range applied {
		delete(byVersion, a.Version)
	}
	for _, m := range all {
		if _, ok := byVersion[m.Version]; ok {
			status.Pending = append(status.Pending, m)
		}
	}
	status.Applied = applied
	return status, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, name, checksum, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var (
			a  AppliedMigration
			at string
		)
		if err := rows.Scan(&a.Version, &a.Name, &a.Checksum, &at); err != nil {
			return nil, fmt.Errorf("reading schema_migrations: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // written by Migrate
		out = append(out, a)
	}
	return out, rows.Err()
}

// verifyApplied checks recorded checksums against the current files.
// Migrations no longer present in the source are not checked.
func verifyApplied(applied []AppliedMigration) error {
	all, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, a := range applied {
		i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == a.Version })
		if i < 0 || a.Checksum == "" {
			continue
		}
		if all[i].checksum() != a.Checksum {
			return fmt.Errorf("%w: %s", ErrMigrationChanged, a.Version)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// loadMigrations reads the migration source, pairing up and down files by
// version. Files that do not look like migrations are skipped.
func loadMigrations() ([]Migration, error) {
	if migrationSource == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(migrationSource, migrationDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(migrationSource, path.Join(migrationDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if up {
			m.Name, m.UpSQL = name, string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		// A lone down file is not a migration.
		if m.UpSQL != "" {
			out = append(out, *m)
		}
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits a migration filename into its version,
// description and direction. The description defaults to the version.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false, false
	}
	version, name = m[1], m[2]
	if name == "" {
		name = version
	}
	return version, name, m[3] == "up", true
}
