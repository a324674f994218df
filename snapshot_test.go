package culturedb

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestSnapshotProducesOpenableCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRange(t, store, 3)

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := store.Snapshot(ctx, dest); err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}

	// A second snapshot to the same path must refuse to overwrite.
	if err := store.Snapshot(ctx, dest); err == nil {
		t.Error("snapshot onto an existing file should fail")
	}

	snap, err := Open(DefaultConfig(dest))
	if err != nil {
		t.Fatalf("failed to open snapshot copy: %v", err)
	}
	defer snap.Close()

	rows, err := snap.RangeActivity(ctx, "run1", "A", "", "", 0)
	if err != nil {
		t.Fatalf("failed to scan snapshot copy: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("snapshot copy has %d rows, want 3", len(rows))
	}
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRange(t, store, 2)

	var buf bytes.Buffer
	if err := store.WriteSnapshot(ctx, &buf); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("snapshot stream is empty")
	}

	dest := filepath.Join(t.TempDir(), "restored.db")
	if err := ReadSnapshot(&buf, dest); err != nil {
		t.Fatalf("failed to restore snapshot: %v", err)
	}

	restored, err := Open(DefaultConfig(dest))
	if err != nil {
		t.Fatalf("failed to open restored copy: %v", err)
	}
	defer restored.Close()

	stats, err := restored.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if stats.ActivityRows != 2 {
		t.Errorf("restored activity rows = %d, want 2", stats.ActivityRows)
	}
}
