package culturedb

import (
	"fmt"
	"sort"
	"strings"
)

// SourceSpec describes one measurement source: the narrow table its records
// land in, the narrow columns beyond the composite key, and the wide columns
// the source owns in the activity view. Wide column groups must be disjoint
// across sources; the store validates this at open time and refuses to start
// on overlap, so one source can never silently overwrite another's data.
type SourceSpec struct {
	// Name identifies the source (e.g., "temperature").
	Name string
	// Table is the narrow append-only table for this source.
	Table string
	// NarrowColumns are the source-specific columns of the narrow table,
	// excluding the experiment/unit/timestamp key columns.
	NarrowColumns []string
	// WideColumns are the activity-view columns this source owns. A narrow
	// column with no wide counterpart (per-channel detail, event metadata)
	// simply stays narrow-only.
	WideColumns []string
	// SinceVersion is the wide-schema version that introduced this source's
	// column group. Kept for the historical record; all current sources are
	// part of the latest layout.
	SinceVersion int
}

// Source names, stable across schema versions.
const (
	SourceTemperature = "temperature"
	SourcePH          = "ph"
	SourceOD          = "od"
	SourceGrowthRate  = "growth_rate"
	SourceRodTemps    = "rod_temps"
	SourceStirring    = "stirring"
	SourceDosing      = "dosing"
)

// defaultSources is the static source catalog for the current wide-schema
// version. The narrow tables mirror the raw observation shape; the wide
// columns are the consolidated view each source is permitted to write.
func defaultSources() []SourceSpec {
	return []SourceSpec{
		{
			Name:          SourceTemperature,
			Table:         "temperature_readings",
			NarrowColumns: []string{"temperature_c"},
			WideColumns:   []string{"temperature_c"},
			SinceVersion:  1,
		},
		{
			Name:          SourcePH,
			Table:         "ph_readings",
			NarrowColumns: []string{"ph"},
			WideColumns:   []string{"ph"},
			SinceVersion:  2,
		},
		{
			Name:          SourceOD,
			Table:         "od_readings",
			NarrowColumns: []string{"od_reading", "channel", "angle"},
			WideColumns:   []string{"od_reading"},
			SinceVersion:  1,
		},
		{
			Name:          SourceGrowthRate,
			Table:         "growth_rates",
			NarrowColumns: []string{"growth_rate"},
			WideColumns:   []string{"growth_rate"},
			SinceVersion:  2,
		},
		{
			Name:  SourceRodTemps,
			Table: "rod_temperatures",
			NarrowColumns: []string{
				"top_c", "middle_c", "bottom_c",
				"top_read_at", "middle_read_at", "bottom_read_at",
			},
			WideColumns:  []string{"rod_temp_top_c", "rod_temp_middle_c", "rod_temp_bottom_c"},
			SinceVersion: 3,
		},
		{
			Name:          SourceStirring,
			Table:         "stirring_rates",
			NarrowColumns: []string{"rpm"},
			WideColumns:   []string{"stirring_rpm"},
			SinceVersion:  3,
		},
		{
			Name:          SourceDosing,
			Table:         "dosing_events",
			NarrowColumns: []string{"volume_ml", "event", "source_of_event"},
			WideColumns:   []string{"dose_volume_ml", "dose_event"},
			SinceVersion:  3,
		},
	}
}

// validateOwnership checks that no wide column is claimed by more than one
// source and that every spec is well formed. Called once at open; an overlap
// is a configuration error and fatal.
func validateOwnership(specs []SourceSpec) error {
	claimed := make(map[string][]string)
	seen := make(map[string]bool)

	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("source spec with empty name")
		}
		if spec.Table == "" {
			return fmt.Errorf("source %q has no narrow table", spec.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate source %q", spec.Name)
		}
		seen[spec.Name] = true

		if len(spec.WideColumns) == 0 {
			return fmt.Errorf("source %q owns no wide columns", spec.Name)
		}
		for _, col := range spec.WideColumns {
			if col == "" {
				return fmt.Errorf("source %q claims an empty column name", spec.Name)
			}
			if isKeyColumn(col) {
				return fmt.Errorf("source %q claims key column %q", spec.Name, col)
			}
			claimed[col] = append(claimed[col], spec.Name)
		}
	}

	cols := make([]string, 0, len(claimed))
	for col := range claimed {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		if owners := claimed[col]; len(owners) > 1 {
			sort.Strings(owners)
			return &OwnershipError{Column: col, Sources: owners}
		}
	}
	return nil
}

func isKeyColumn(col string) bool {
	return col == "experiment" || col == "unit" || col == "timestamp"
}

// insertSQL builds the narrow-table insert for this source.
func (s SourceSpec) insertSQL() string {
	cols := append([]string{"experiment", "unit", "timestamp"}, s.NarrowColumns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(cols, ", "), placeholders)
}

// upsertSQL builds the wide-view upsert for this source. On first
// contribution for a key it creates the row with only this source's columns
// populated; on conflict it overwrites exactly this source's column group,
// leaving every other column untouched. The overwrite is unconditional
// last-writer-wins: ordering within one source's stream is the producer's
// responsibility. COALESCE keeps a previously written value when the new
// record omits a column (a multi-channel source reporting only some
// channels); a non-null value always wins.
func (s SourceSpec) upsertSQL() string {
	cols := append([]string{"experiment", "unit", "timestamp"}, s.WideColumns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	sets := make([]string, len(s.WideColumns))
	for i, col := range s.WideColumns {
		sets[i] = fmt.Sprintf("%s = COALESCE(excluded.%s, %s)", col, col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(experiment, unit, timestamp) DO UPDATE SET %s",
		wideTable, strings.Join(cols, ", "), placeholders, strings.Join(sets, ", "))
}
