package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for thermostat persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a thermostat by house code.
	// Returns ErrThermostatNotFound if no row exists.
	Get(ctx context.Context, houseCode string) (*Thermostat, error)

	// List retrieves all thermostats ordered by house code.
	List(ctx context.Context) ([]Thermostat, error)

	// Upsert inserts a seeded thermostat. An existing row only has its name
	// filled in, and only when the stored name is empty.
	Upsert(ctx context.Context, seed Seed) error

	// RecordObservations merges state into the thermostat's stored state and
	// updates its last-seen time, creating the row on first sight.
	RecordObservations(ctx context.Context, houseCode, kind string, state State, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectThermostat = `
	SELECT house_code, name, first_seen, last_seen, last_kind, state, created_at, updated_at
	FROM thermostats`

// Get retrieves a thermostat by house code.
func (r *SQLiteRepository) Get(ctx context.Context, houseCode string) (*Thermostat, error) {
	if err := ValidateHouseCode(houseCode); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, selectThermostat+" WHERE house_code = ?", houseCode)
	t, err := scanThermostat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThermostatNotFound
		}
		return nil, fmt.Errorf("querying thermostat %s: %w", houseCode, err)
	}
	return t, nil
}

// List retrieves all thermostats ordered by house code.
func (r *SQLiteRepository) List(ctx context.Context) ([]Thermostat, error) {
	rows, err := r.db.QueryContext(ctx, selectThermostat+" ORDER BY house_code")
	if err != nil {
		return nil, fmt.Errorf("querying thermostats: %w", err)
	}
	defer rows.Close()

	var thermostats []Thermostat
	for rows.Next() {
		t, err := scanThermostat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thermostat: %w", err)
		}
		thermostats = append(thermostats, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thermostats: %w", err)
	}
	return thermostats, nil
}

// Upsert inserts a seeded thermostat or fills in a missing name.
func (r *SQLiteRepository) Upsert(ctx context.Context, seed Seed) error {
	if err := ValidateHouseCode(seed.HouseCode); err != nil {
		return err
	}
	if err := ValidateName(seed.Name); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO thermostats (house_code, name, state, created_at, updated_at)
		VALUES (?, ?, '{}', ?, ?)
		ON CONFLICT(house_code) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
		WHERE thermostats.name = '' AND excluded.name != ''`,
		seed.HouseCode, seed.Name, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting thermostat %s: %w", seed.HouseCode, err)
	}
	return nil
}

// RecordObservations merges state into the stored state with json_patch, so
// commands missing from this batch keep their last value.
func (r *SQLiteRepository) RecordObservations(ctx context.Context, houseCode, kind string, state State, at time.Time) error {
	if err := ValidateHouseCode(houseCode); err != nil {
		return err
	}
	if err := ValidateState(state); err != nil {
		return err
	}
	if state == nil {
		state = State{}
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	seen := at.UTC().Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO thermostats (house_code, name, first_seen, last_seen, last_kind, state, created_at, updated_at)
		VALUES (?, '', ?, ?, ?, ?, ?, ?)
		ON CONFLICT(house_code) DO UPDATE SET
			first_seen = COALESCE(thermostats.first_seen, excluded.first_seen),
			last_seen = excluded.last_seen,
			last_kind = excluded.last_kind,
			state = json_patch(thermostats.state, excluded.state),
			updated_at = excluded.updated_at`,
		houseCode, seen, seen, kind, string(stateJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("recording observations for %s: %w", houseCode, err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThermostat(scanner rowScanner) (*Thermostat, error) {
	var t Thermostat
	var firstSeen, lastSeen sql.NullString
	var stateJSON, createdAt, updatedAt string

	if err := scanner.Scan(
		&t.HouseCode,
		&t.Name,
		&firstSeen,
		&lastSeen,
		&t.LastKind,
		&stateJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	t.State = State{}
	if err := json.Unmarshal([]byte(stateJSON), &t.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	t.FirstSeen = parseNullableTime(firstSeen)
	t.LastSeen = parseNullableTime(lastSeen)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &t, nil
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
