package services

import "errors"

var (
	// ErrNotFound means the user has no progress record and must /start first.
	ErrNotFound = errors.New("user has not started onboarding")

	// ErrCollaboratorUnavailable wraps failures of the progress store.
	ErrCollaboratorUnavailable = errors.New("progress store unavailable")
)
