package culturedb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// wideTable is the consolidated activity view. One row per
// (experiment, unit, timestamp); the primary key enforces uniqueness.
const wideTable = "unit_activity"

// Store is the consolidated unit-activity store. It owns one narrow
// append-only table per measurement source and the wide activity view they
// consolidate into. A process opens exactly one Store per database file, at
// startup, and shares it between producers; the handle is safe for
// concurrent use.
type Store struct {
	db      *sql.DB
	config  Config
	sources []SourceSpec

	// per-source precomputed SQL, keyed by source name
	bySource map[string]*sourceStatements

	hub *ActivityHub

	mu     sync.RWMutex
	closed bool
}

type sourceStatements struct {
	spec   SourceSpec
	insert string
	upsert string
}

// Open opens (creating if necessary) the store at config.Path, applies any
// pending schema migrations, and validates the source catalog. An
// overlapping column-ownership configuration is fatal here, never tolerated
// at runtime.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	config.normalize()

	sources := config.Sources
	if sources == nil {
		sources = defaultSources()
	}
	if err := validateOwnership(sources); err != nil {
		return nil, fmt.Errorf("invalid source catalog: %w", err)
	}

	// _txlock=immediate makes every write transaction take the write lock
	// up front, so the consolidation upsert cannot race its narrow insert.
	// busy_timeout bounds the wait; exhaustion surfaces as ErrBusy.
	dsn := fmt.Sprintf(
		"%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=cache_size(-%d)&_pragma=foreign_keys(1)",
		config.Path,
		config.Storage.BusyTimeout,
		config.Storage.JournalMode,
		config.Storage.Synchronous,
		config.Storage.CacheSize,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.Storage.MaxConnections)
	db.SetMaxIdleConns(config.Storage.MaxConnections / 2)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := verifyWideColumns(db, sources); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		db:       db,
		config:   config,
		sources:  sources,
		bySource: make(map[string]*sourceStatements, len(sources)),
	}
	for _, spec := range sources {
		store.bySource[spec.Name] = &sourceStatements{
			spec:   spec,
			insert: spec.insertSQL(),
			upsert: spec.upsertSQL(),
		}
	}

	if config.Stream.Enabled {
		store.hub = NewActivityHub(config.Stream)
	}

	return store, nil
}

// verifyWideColumns checks that every wide column a source owns exists in
// the migrated activity view. A source spec referencing a column the schema
// does not have is a configuration error, fatal at open.
func verifyWideColumns(db *sql.DB, sources []SourceSpec) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", wideTable))
	if err != nil {
		return fmt.Errorf("failed to inspect activity view: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, spec := range sources {
		for _, col := range spec.WideColumns {
			if !have[col] {
				return fmt.Errorf("source %q owns column %q not present in %s", spec.Name, col, wideTable)
			}
		}
	}
	return nil
}

// Sources returns the validated source catalog in use.
func (s *Store) Sources() []SourceSpec {
	out := make([]SourceSpec, len(s.sources))
	copy(out, s.sources)
	return out
}

// Hub returns the activity-update hub, or nil when streaming is disabled.
func (s *Store) Hub() *ActivityHub {
	return s.hub
}

// Close releases the database handle. Appends in flight complete or fail;
// the data file is left quiescent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.hub != nil {
		s.hub.CloseAll()
	}
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Experiment is the parent entity of all narrow records and wide rows.
type Experiment struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CreateExperiment registers an experiment. Appends referencing an
// unregistered experiment are rejected with ErrUnknownExperiment.
func (s *Store) CreateExperiment(ctx context.Context, name, description string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("experiment name is required")
	}

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, description, created_at) VALUES (?, ?, ?)`,
		name, description, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", mapSQLiteError(err))
	}
	return nil
}

// DeleteExperiment removes an experiment and, by cascade, every narrow
// record and wide row referencing it. The cascade is a single transaction
// at the storage layer; no orphan rows remain.
func (s *Store) DeleteExperiment(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", mapSQLiteError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: experiment %q", ErrNotFound, name)
	}
	return nil
}

// ExperimentExists reports whether an experiment is registered.
func (s *Store) ExperimentExists(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM experiments WHERE name = ? LIMIT 1`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check experiment: %w", mapSQLiteError(err))
	}
	return true, nil
}

// ListExperiments returns all registered experiments ordered by name.
func (s *Store) ListExperiments(ctx context.Context) ([]Experiment, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, created_at FROM experiments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var experiments []Experiment
	for rows.Next() {
		var e Experiment
		var desc sql.NullString
		if err := rows.Scan(&e.Name, &desc, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		e.Description = desc.String
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// DB returns the underlying database handle for advanced use cases
// (read-only consumers with their own query needs).
func (s *Store) DB() *sql.DB {
	return s.db
}
