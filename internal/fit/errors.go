package fit

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch indicates two series have different lengths.
var ErrLengthMismatch = errors.New("series length mismatch")

// ErrEmptySeries indicates a zero-length series where values are required.
var ErrEmptySeries = errors.New("empty series")

// UndefinedThresholdError is returned when no training column is eligible to
// bound the deviation of an ideal function.
type UndefinedThresholdError struct {
	IdealID int
	// Columns is the number of training columns that were considered.
	Columns int
}

func (e *UndefinedThresholdError) Error() string {
	return fmt.Sprintf("threshold undefined for ideal function %d: no eligible training column (%d considered)", e.IdealID, e.Columns)
}

// UnknownFunctionError is returned when an ideal function id is outside the
// ideal table.
type UnknownFunctionError struct {
	IdealID   int
	Available int
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("ideal function %d does not exist (table has %d)", e.IdealID, e.Available)
}

// NoCandidateError reports training columns for which no ideal function of
// equal length exists.
type NoCandidateError struct {
	Columns []int
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no ideal function candidate for training column(s) %v", e.Columns)
}

// LookupMissError is returned by strict assignment when a test point's x has
// no row in the ideal table.
type LookupMissError struct {
	Misses []LookupMiss
}

func (e *LookupMissError) Error() string {
	if len(e.Misses) == 1 {
		return fmt.Sprintf("no ideal row at x=%g (test point %d)", e.Misses[0].X, e.Misses[0].Index)
	}
	return fmt.Sprintf("no ideal row for %d test point(s), first at x=%g", len(e.Misses), e.Misses[0].X)
}
