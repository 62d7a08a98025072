package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvaldes/worklog/internal/models"
)

// Sentinel errors returned by Store implementations. NotFound is distinct
// from transient failures so callers can map it without string matching.
var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session modified concurrently")
)

// SessionFilter specifies filters for listing sessions. Zero values mean
// "no filter". Deleted sessions are excluded unless IncludeDeleted is set;
// soft deletion is an explicit predicate here, not a global query rewrite.
type SessionFilter struct {
	CollaboratorID string
	ProjectID      string
	// DateFrom/DateTo bound StartedAt inclusively. DateTo is adjusted to
	// the end of its day so sessions started any time that day match.
	DateFrom        *time.Time
	DateTo          *time.Time
	NonFinishedOnly bool
	IncludeDeleted  bool
}

// Store defines the persistence interface for worklog sessions. All writes
// that touch both a session and an event commit atomically: a reader never
// observes an appended event without the matching session update.
type Store interface {
	// CreateSession inserts a new session together with its first events.
	CreateSession(ctx context.Context, session *models.Session, events ...*models.SessionEvent) error

	// GetSessionWithEvents loads a session and its event log ordered by
	// occurrence. Returns ErrNotFound if the id is unknown or soft-deleted.
	GetSessionWithEvents(ctx context.Context, id string) (*models.Session, error)

	// UpdateSessionAppendEvent commits a session update and a new event as
	// one transaction. The session's Version must match the stored row;
	// on mismatch the transaction rolls back with ErrConflict.
	UpdateSessionAppendEvent(ctx context.Context, session *models.Session, event *models.SessionEvent) error

	// CountNonFinished returns how many active or paused sessions the
	// collaborator currently has.
	CountNonFinished(ctx context.Context, collaboratorID string) (int, error)

	// ListSessions returns sessions matching the filter, ordered by
	// StartedAt descending. Event logs are not loaded.
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error)

	// DeleteSession soft-deletes a session. The row and its events remain
	// for audit; filtered reads skip it unless asked not to.
	DeleteSession(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
