package tracker

import "errors"

// Failure kinds returned by Manager operations. Callers match with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrNotFound means the referenced session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidTransition means the requested operation is not legal from
	// the session's current state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrOpenSessionLimit means Start was rejected because the collaborator
	// already has too many non-finished sessions.
	ErrOpenSessionLimit = errors.New("open session limit reached")

	// ErrPersistence means the atomic save of session+event did not commit.
	// The operation left no observable state change; retrying is caller
	// policy, never automatic.
	ErrPersistence = errors.New("persistence failure")

	// ErrValidation means malformed input.
	ErrValidation = errors.New("validation failure")
)
