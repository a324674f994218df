package culturedb

import (
	"context"
	"database/sql"
	"fmt"
)

// ActivityRow is one consolidated row of the wide activity view. A field is
// nil until some source has written it; once written it holds the most
// recent value that source reported for this exact key.
type ActivityRow struct {
	Experiment string `json:"experiment"`
	Unit       string `json:"unit"`
	Timestamp  string `json:"timestamp"`

	TemperatureC   *float64 `json:"temperature_c,omitempty"`
	PH             *float64 `json:"ph,omitempty"`
	ODReading      *float64 `json:"od_reading,omitempty"`
	GrowthRate     *float64 `json:"growth_rate,omitempty"`
	RodTempTopC    *float64 `json:"rod_temp_top_c,omitempty"`
	RodTempMiddleC *float64 `json:"rod_temp_middle_c,omitempty"`
	RodTempBottomC *float64 `json:"rod_temp_bottom_c,omitempty"`
	StirringRPM    *float64 `json:"stirring_rpm,omitempty"`
	DoseVolumeML   *float64 `json:"dose_volume_ml,omitempty"`
	DoseEvent      *string  `json:"dose_event,omitempty"`
}

// Key returns the composite key of the row.
func (r ActivityRow) Key() ActivityKey {
	return ActivityKey{Experiment: r.Experiment, Unit: r.Unit, Timestamp: r.Timestamp}
}

const activityColumns = `experiment, unit, timestamp,
	temperature_c, ph, od_reading, growth_rate,
	rod_temp_top_c, rod_temp_middle_c, rod_temp_bottom_c,
	stirring_rpm, dose_volume_ml, dose_event`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivityRow(sc rowScanner) (ActivityRow, error) {
	var r ActivityRow
	err := sc.Scan(
		&r.Experiment, &r.Unit, &r.Timestamp,
		&r.TemperatureC, &r.PH, &r.ODReading, &r.GrowthRate,
		&r.RodTempTopC, &r.RodTempMiddleC, &r.RodTempBottomC,
		&r.StirringRPM, &r.DoseVolumeML, &r.DoseEvent,
	)
	return r, err
}

// GetActivity returns the wide row for an exact key, or ErrNotFound.
func (s *Store) GetActivity(ctx context.Context, key ActivityKey) (*ActivityRow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE experiment = ? AND unit = ? AND timestamp = ?`,
		activityColumns, wideTable)

	row, err := scanActivityRow(s.db.QueryRowContext(ctx, query,
		key.Experiment, key.Unit, key.Timestamp))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read activity row: %w", mapSQLiteError(err))
	}
	return &row, nil
}

// RangeActivity scans the activity view for one (experiment, unit), ordered
// lexicographically by timestamp. start is inclusive and end exclusive;
// either may be empty for an unbounded side. limit <= 0 means no limit.
func (s *Store) RangeActivity(ctx context.Context, experiment, unit, start, end string, limit int) ([]ActivityRow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if experiment == "" || unit == "" {
		return nil, fmt.Errorf("%w: experiment and unit are required", ErrMissingKey)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE experiment = ? AND unit = ?`,
		activityColumns, wideTable)
	args := []any{experiment, unit}

	if start != "" {
		query += ` AND timestamp >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND timestamp < ?`
		args = append(args, end)
	}
	query += ` ORDER BY timestamp`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity range: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var out []ActivityRow
	for rows.Next() {
		r, err := scanActivityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestActivity returns the most recent wide row for one
// (experiment, unit), or ErrNotFound when the unit has no rows.
func (s *Store) LatestActivity(ctx context.Context, experiment, unit string) (*ActivityRow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if experiment == "" || unit == "" {
		return nil, fmt.Errorf("%w: experiment and unit are required", ErrMissingKey)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE experiment = ? AND unit = ? ORDER BY timestamp DESC LIMIT 1`,
		activityColumns, wideTable)

	row, err := scanActivityRow(s.db.QueryRowContext(ctx, query, experiment, unit))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no activity for %s/%s", ErrNotFound, experiment, unit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest activity: %w", mapSQLiteError(err))
	}
	return &row, nil
}
