package culturedb

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func seedRange(t *testing.T, store *Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ts := fmt.Sprintf("2026-08-31T00:00:%02d.000Z", i)
		if err := store.AppendTemperature(ctx, TemperatureReading{Key: key(ts), TemperatureC: 20 + float64(i)}); err != nil {
			t.Fatalf("failed to seed row %d: %v", i, err)
		}
	}
}

func TestGetActivityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetActivity(context.Background(), key("2026-08-31T00:00:01.000Z"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRangeActivityOrdering(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 5)

	rows, err := store.RangeActivity(context.Background(), "run1", "A", "", "", 0)
	if err != nil {
		t.Fatalf("failed to scan range: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Timestamp >= rows[i].Timestamp {
			t.Errorf("rows out of order: %s before %s", rows[i-1].Timestamp, rows[i].Timestamp)
		}
	}
}

func TestRangeActivityBounds(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 5)

	// start inclusive, end exclusive
	rows, err := store.RangeActivity(context.Background(), "run1", "A",
		"2026-08-31T00:00:01.000Z", "2026-08-31T00:00:03.000Z", 0)
	if err != nil {
		t.Fatalf("failed to scan range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Timestamp != "2026-08-31T00:00:01.000Z" {
		t.Errorf("first row = %s, want 00:00:01", rows[0].Timestamp)
	}
	if rows[1].Timestamp != "2026-08-31T00:00:02.000Z" {
		t.Errorf("second row = %s, want 00:00:02", rows[1].Timestamp)
	}
}

func TestRangeActivityLimit(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 5)

	rows, err := store.RangeActivity(context.Background(), "run1", "A", "", "", 3)
	if err != nil {
		t.Fatalf("failed to scan range: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows, want 3", len(rows))
	}
}

func TestRangeActivityOtherUnitExcluded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRange(t, store, 2)

	if err := store.AppendTemperature(ctx, TemperatureReading{
		Key:          NewActivityKey("run1", "B", "2026-08-31T00:00:00.000Z"),
		TemperatureC: 25,
	}); err != nil {
		t.Fatalf("failed to append for unit B: %v", err)
	}

	rows, err := store.RangeActivity(ctx, "run1", "A", "", "", 0)
	if err != nil {
		t.Fatalf("failed to scan range: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows for unit A, want 2", len(rows))
	}
}

func TestRangeActivityRequiresExperimentAndUnit(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.RangeActivity(context.Background(), "", "A", "", "", 0); !errors.Is(err, ErrMissingKey) {
		t.Errorf("missing experiment: got %v, want ErrMissingKey", err)
	}
	if _, err := store.RangeActivity(context.Background(), "run1", "", "", "", 0); !errors.Is(err, ErrMissingKey) {
		t.Errorf("missing unit: got %v, want ErrMissingKey", err)
	}
}

func TestLatestActivity(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 3)

	row, err := store.LatestActivity(context.Background(), "run1", "A")
	if err != nil {
		t.Fatalf("failed to read latest: %v", err)
	}
	if row.Timestamp != "2026-08-31T00:00:02.000Z" {
		t.Errorf("latest = %s, want 00:00:02", row.Timestamp)
	}

	_, err = store.LatestActivity(context.Background(), "run1", "Z")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("latest for empty unit: got %v, want ErrNotFound", err)
	}
}
