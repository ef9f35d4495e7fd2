package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// MemoryPath opens a private in-memory database that lives as long as the
// DB. Tests and one-shot commands use it.
const MemoryPath = ":memory:"

const (
	driverName = "sqlite3"

	dirMode  = 0o750
	fileMode = 0o600

	pingTimeout = 5 * time.Second
	maxIdleTime = 30 * time.Minute
	maxLifetime = time.Hour
)

// ErrEmptyPath is returned by Open when Config.Path is not set.
var ErrEmptyPath = errors.New("database: empty path")

// Config selects the database file and its SQLite settings. It mirrors the
// database section of the config file.
type Config struct {
	// Path is the database file, or MemoryPath. Missing parent directories
	// are created.
	Path string

	// WALMode switches the journal to write-ahead logging so API reads do
	// not wait on the bridge's writes.
	WALMode bool

	// BusyTimeout is how long a statement waits for a lock, in seconds.
	BusyTimeout int
}

func (c Config) inMemory() bool { return c.Path == MemoryPath }

// dsn renders the go-sqlite3 connection string. Foreign keys are always
// enforced.
func (c Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	if c.WALMode && !c.inMemory() {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}

	name := c.Path
	if c.inMemory() {
		name = MemoryPath
	}
	return "file:" + name + "?" + q.Encode()
}

// DB is the inventory database. The embedded *sql.DB is handed to
// repositories as is.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database described by cfg and
// checks that it answers.
//
// The pool holds a single connection: SQLite allows one writer, and an
// in-memory database disappears with its last connection.
//
// Parameters:
//   - cfg: File path and SQLite settings
//
// Returns:
//   - *DB: Open database
//   - error: ErrEmptyPath, or a wrapped filesystem or driver error
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	if !cfg.inMemory() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	pool, err := sql.Open(driverName, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	if !cfg.inMemory() {
		pool.SetConnMaxLifetime(maxLifetime)
		pool.SetConnMaxIdleTime(maxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("connecting to database %s: %w", cfg.Path, err)
	}

	if !cfg.inMemory() {
		// The file exists once the ping has run.
		if err := os.Chmod(cfg.Path, fileMode); err != nil {
			pool.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("restricting database permissions: %w", err)
		}
	}

	return &DB{DB: pool, path: cfg.Path}, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close releases the pool. It is safe on a nil DB.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// JournalMode reports the active SQLite journal mode, "wal" when WALMode
// took effect.
func (db *DB) JournalMode(ctx context.Context) (string, error) {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("reading journal mode: %w", err)
	}
	return strings.ToLower(mode), nil
}
