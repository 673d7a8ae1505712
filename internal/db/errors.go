package db

import "errors"

var (
	// ErrNotFound is returned when no progress record exists for a user.
	ErrNotFound = errors.New("progress record not found")

	// ErrStepConflict is returned by ApplyStep when the stored current step
	// no longer matches the step the change was computed for.
	ErrStepConflict = errors.New("current step changed concurrently")
)

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStepConflict)
}
