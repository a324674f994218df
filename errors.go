package culturedb

import (
	"errors"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Common sentinel errors for the culturedb package.
var (
	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrMissingKey is returned when a narrow record lacks one of the three
	// composite key components.
	ErrMissingKey = errors.New("incomplete activity key")

	// ErrUnknownExperiment is returned when an append references an
	// experiment that does not exist. The append leaves no partial writes;
	// callers may retry after creating the experiment.
	ErrUnknownExperiment = errors.New("unknown experiment")

	// ErrBusy is returned when an append waited out the bounded lock
	// timeout. It is retryable; callers are expected to back off and retry.
	ErrBusy = errors.New("store busy")

	// ErrColumnOwnership is returned at open time when two sources claim the
	// same wide column. It is fatal: the store refuses to start.
	ErrColumnOwnership = errors.New("overlapping column ownership")

	// ErrNotFound is returned by reads for a key or experiment that does
	// not exist.
	ErrNotFound = errors.New("not found")
)

// OwnershipError reports a wide column claimed by more than one source.
// It unwraps to ErrColumnOwnership.
type OwnershipError struct {
	Column  string
	Sources []string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("column %q claimed by sources %s", e.Column, strings.Join(e.Sources, ", "))
}

func (e *OwnershipError) Unwrap() error {
	return ErrColumnOwnership
}

// mapSQLiteError translates driver errors into the package's error taxonomy.
// Foreign-key violations become ErrUnknownExperiment (the experiments table
// is the only referenced parent), and lock-wait exhaustion becomes the
// retryable ErrBusy. Everything else passes through unchanged.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	code := se.Code()
	switch {
	case code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY"):
		return fmt.Errorf("%w: %v", ErrUnknownExperiment, err)
	}
	return err
}
