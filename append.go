package culturedb

import (
	"context"
	"fmt"
)

// ActivityUpdate is one consolidated contribution, published to stream
// subscribers after its transaction commits.
type ActivityUpdate struct {
	Experiment string         `json:"experiment"`
	Unit       string         `json:"unit"`
	Timestamp  string         `json:"timestamp"`
	Source     string         `json:"source"`
	Columns    map[string]any `json:"columns"`
}

// AppendTemperature records one vessel temperature reading.
func (s *Store) AppendTemperature(ctx context.Context, r TemperatureReading) error {
	return s.append(ctx, SourceTemperature, r.Key,
		[]any{r.TemperatureC},
		[]any{r.TemperatureC})
}

// AppendPH records one pH reading.
func (s *Store) AppendPH(ctx context.Context, r PHReading) error {
	return s.append(ctx, SourcePH, r.Key,
		[]any{r.PH},
		[]any{r.PH})
}

// AppendOD records one raw optical-density reading. Channel and angle are
// kept in the narrow table only.
func (s *Store) AppendOD(ctx context.Context, r ODReading) error {
	return s.append(ctx, SourceOD, r.Key,
		[]any{r.ODReading, nullString(r.Channel), nullString(r.Angle)},
		[]any{r.ODReading})
}

// AppendGrowthRate records one growth-rate estimate.
func (s *Store) AppendGrowthRate(ctx context.Context, r GrowthRateEstimate) error {
	return s.append(ctx, SourceGrowthRate, r.Key,
		[]any{r.GrowthRate},
		[]any{r.GrowthRate})
}

// AppendRodTemperatures records one sweep of the rod thermometer. Channels
// the sweep did not read are nil and leave any previously consolidated
// value for that channel in place.
func (s *Store) AppendRodTemperatures(ctx context.Context, r RodTemperatures) error {
	return s.append(ctx, SourceRodTemps, r.Key,
		[]any{
			r.TopC, r.MiddleC, r.BottomC,
			nullString(r.TopReadAt), nullString(r.MiddleReadAt), nullString(r.BottomReadAt),
		},
		[]any{r.TopC, r.MiddleC, r.BottomC})
}

// AppendStirringRate records one stirring-speed measurement.
func (s *Store) AppendStirringRate(ctx context.Context, r StirringRate) error {
	return s.append(ctx, SourceStirring, r.Key,
		[]any{r.RPM},
		[]any{r.RPM})
}

// AppendDosingEvent records one dosing actuator update.
func (s *Store) AppendDosingEvent(ctx context.Context, r DosingEvent) error {
	return s.append(ctx, SourceDosing, r.Key,
		[]any{r.VolumeML, r.Event, nullString(r.SourceOfEvent)},
		[]any{r.VolumeML, r.Event})
}

// append is the single write path: the narrow insert and the wide-view
// upsert run in one immediate transaction, so a narrow record never exists
// without its consolidation and a failed consolidation rolls the narrow
// insert back. Consolidation is unconditional last-writer-wins per column
// group; a replayed stale record overwrites newer data, which is the
// producer's responsibility to avoid.
func (s *Store) append(ctx context.Context, source string, key ActivityKey, narrow, wide []any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	stmts, ok := s.bySource[source]
	if !ok {
		return fmt.Errorf("no such source %q", source)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", mapSQLiteError(err))
	}
	defer tx.Rollback()

	keyArgs := []any{key.Experiment, key.Unit, key.Timestamp}

	if _, err := tx.ExecContext(ctx, stmts.insert, append(keyArgs, narrow...)...); err != nil {
		return fmt.Errorf("failed to append %s record: %w", source, mapSQLiteError(err))
	}
	if _, err := tx.ExecContext(ctx, stmts.upsert, append(keyArgs, wide...)...); err != nil {
		return fmt.Errorf("failed to consolidate %s record: %w", source, mapSQLiteError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", mapSQLiteError(err))
	}

	if s.hub != nil {
		s.hub.Publish(ActivityUpdate{
			Experiment: key.Experiment,
			Unit:       key.Unit,
			Timestamp:  key.Timestamp,
			Source:     source,
			Columns:    wideColumnMap(stmts.spec, wide),
		})
	}
	return nil
}

// wideColumnMap pairs a source's owned columns with the values just
// written, skipping omitted (nil) ones.
func wideColumnMap(spec SourceSpec, wide []any) map[string]any {
	cols := make(map[string]any, len(wide))
	for i, col := range spec.WideColumns {
		if i >= len(wide) {
			break
		}
		switch v := wide[i].(type) {
		case nil:
		case *float64:
			if v != nil {
				cols[col] = *v
			}
		default:
			cols[col] = v
		}
	}
	return cols
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
