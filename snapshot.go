package culturedb

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// Snapshot writes a point-in-time consistent copy of the database to
// destPath using VACUUM INTO. The copy is quiescent by construction:
// concurrent appends either land fully before the snapshot or fully after
// it, and the copied file needs no WAL to open. External backup tooling
// copies or ships the resulting file as an opaque unit.
func (s *Store) Snapshot(ctx context.Context, destPath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if destPath == "" {
		return fmt.Errorf("snapshot destination is required")
	}
	// VACUUM INTO refuses to overwrite.
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("snapshot destination %s already exists", destPath)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", mapSQLiteError(err))
	}
	return nil
}

// WriteSnapshot streams a snappy-compressed snapshot to w. It takes a
// Snapshot into a temporary file first, so the stream is as consistent as
// Snapshot itself, then removes the temporary copy.
func (s *Store) WriteSnapshot(ctx context.Context, w io.Writer) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "culturedb-snapshot-")
	if err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, "snapshot.db")
	if err := s.Snapshot(ctx, tmpPath); err != nil {
		return err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	sw := snappy.NewBufferedWriter(w)
	if _, err := io.Copy(sw, f); err != nil {
		return fmt.Errorf("failed to stream snapshot: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot stream: %w", err)
	}
	return nil
}

// ReadSnapshot decompresses a stream produced by WriteSnapshot into
// destPath, ready to be opened as a database file.
func ReadSnapshot(r io.Reader, destPath string) error {
	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, snappy.NewReader(r)); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return nil
}
