package store

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned when a table has never been loaded.
	ErrTableNotFound = errors.New("table not found")

	// ErrRowNotFound is returned when no row exists at the requested x.
	ErrRowNotFound = errors.New("row not found")

	// ErrInvalidName is returned for table names that cannot be used in keys.
	ErrInvalidName = errors.New("invalid table name")

	// ErrLocked is returned when another process holds the store lock.
	ErrLocked = errors.New("store is locked by another run")
)

// ConflictError is returned when a destination already holds records from a
// previous run. Nothing is written when it is returned.
type ConflictError struct {
	Destination Destination
	// Expected is the number of records this run tried to store.
	Expected int
	// Observed is the number of records the destination would hold.
	Observed int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination %s already contains results from a previous run (records in this run: %d, records after commit: %d); clear it first",
		e.Destination, e.Expected, e.Observed)
}
