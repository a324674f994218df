package culturedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// A migration is one versioned step of wide-schema evolution. The history
// mirrors how the column layout actually grew as sources were added and
// renamed; fresh databases replay the full history so every deployment ends
// at the same layout regardless of the version it started from.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		// Initial layout: experiments, the first two sources, and the
		// activity view with their columns. Temperature was recorded as
		// "temp_c" in this era.
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS experiments (
				name TEXT PRIMARY KEY,
				description TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS temperature_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				temperature_c REAL
			)`,
			`CREATE TABLE IF NOT EXISTS od_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				od_reading REAL,
				channel TEXT,
				angle TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS unit_activity (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				temp_c REAL,
				od_reading REAL,
				PRIMARY KEY (experiment, unit, timestamp)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_temperature_readings_key
				ON temperature_readings(experiment, unit, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_od_readings_key
				ON od_readings(experiment, unit, timestamp)`,
		},
	},
	{
		// The temperature column was renamed and the pH and growth-rate
		// sources arrived.
		version: 2,
		stmts: []string{
			`ALTER TABLE unit_activity RENAME COLUMN temp_c TO temperature_c`,
			`ALTER TABLE unit_activity ADD COLUMN ph REAL`,
			`ALTER TABLE unit_activity ADD COLUMN growth_rate REAL`,
			`CREATE TABLE IF NOT EXISTS ph_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				ph REAL
			)`,
			`CREATE TABLE IF NOT EXISTS growth_rates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				growth_rate REAL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ph_readings_key
				ON ph_readings(experiment, unit, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_growth_rates_key
				ON growth_rates(experiment, unit, timestamp)`,
		},
	},
	{
		// Rod thermometer, stirring, and dosing sources.
		version: 3,
		stmts: []string{
			`ALTER TABLE unit_activity ADD COLUMN rod_temp_top_c REAL`,
			`ALTER TABLE unit_activity ADD COLUMN rod_temp_middle_c REAL`,
			`ALTER TABLE unit_activity ADD COLUMN rod_temp_bottom_c REAL`,
			`ALTER TABLE unit_activity ADD COLUMN stirring_rpm REAL`,
			`ALTER TABLE unit_activity ADD COLUMN dose_volume_ml REAL`,
			`ALTER TABLE unit_activity ADD COLUMN dose_event TEXT`,
			`CREATE TABLE IF NOT EXISTS rod_temperatures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				top_c REAL,
				middle_c REAL,
				bottom_c REAL,
				top_read_at TEXT,
				middle_read_at TEXT,
				bottom_read_at TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS stirring_rates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				rpm REAL
			)`,
			`CREATE TABLE IF NOT EXISTS dosing_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE,
				unit TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				volume_ml REAL,
				event TEXT,
				source_of_event TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rod_temperatures_key
				ON rod_temperatures(experiment, unit, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_stirring_rates_key
				ON stirring_rates(experiment, unit, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_dosing_events_key
				ON dosing_events(experiment, unit, timestamp)`,
		},
	},
}

// latestSchemaVersion is the version a fully migrated database reports.
func latestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// runMigrations applies pending schema steps. Each step runs in its own
// transaction together with its version record, so a failed step leaves the
// database at the previous version with no partial DDL recorded.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%q: %w", stmt, err)
		}
	}

	appliedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.version, appliedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the applied wide-schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
