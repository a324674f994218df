package culturedb

import (
	"context"
	"fmt"
)

// StoreStats summarizes the contents of the store.
type StoreStats struct {
	Experiments  int64            `json:"experiments"`
	ActivityRows int64            `json:"activity_rows"`
	NarrowRows   map[string]int64 `json:"narrow_rows"`
	DatabaseSize int64            `json:"database_size"`
}

// Stats returns row counts per table and the database size in bytes.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &StoreStats{NarrowRows: make(map[string]int64, len(s.sources))}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments`)
	if err := row.Scan(&stats.Experiments); err != nil {
		return nil, fmt.Errorf("failed to count experiments: %w", err)
	}

	row = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, wideTable))
	if err := row.Scan(&stats.ActivityRows); err != nil {
		return nil, fmt.Errorf("failed to count activity rows: %w", err)
	}

	for _, spec := range s.sources {
		var n int64
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, spec.Table))
		if err := row.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s rows: %w", spec.Table, err)
		}
		stats.NarrowRows[spec.Name] = n
	}

	// Best effort; pragma support varies.
	row = s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&stats.DatabaseSize); err != nil {
		stats.DatabaseSize = 0
	}

	return stats, nil
}
