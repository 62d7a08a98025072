package models

import (
	"fmt"
	"time"
)

// SessionState represents the lifecycle state of a work session.
type SessionState string

const (
	SessionStateActive   SessionState = "active"
	SessionStatePaused   SessionState = "paused"
	SessionStateFinished SessionState = "finished"
)

// Session represents one timed unit of work performed by a collaborator
// against a project/service. Accumulated time is derived from the session's
// event log and kept denormalized here for cheap reads.
type Session struct {
	ID             string
	CollaboratorID string
	ProjectID      string
	ServiceID      string
	State          SessionState
	// Accumulated work time. Minutes is always in [0, 60); overflow
	// carries into Hours on every update.
	AccumulatedHours   int
	AccumulatedMinutes int
	Description        string
	StartedAt          time.Time
	FinishedAt         *time.Time
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedBy          string
	UpdatedAt          time.Time
	// Version is bumped on every committed transition; the store uses it
	// for optimistic locking so concurrent transitions cannot both commit
	// against the same snapshot.
	Version   int
	DeletedAt *time.Time

	// Events holds the session's ordered event log when loaded with it.
	Events []*SessionEvent
}

// Open reports whether the session is still being worked on (not finished).
func (s *Session) Open() bool {
	return s.State != SessionStateFinished
}

// TotalMinutes returns the accumulated time flattened to minutes.
func (s *Session) TotalMinutes() int {
	return s.AccumulatedHours*60 + s.AccumulatedMinutes
}

// DurationString formats accumulated time as "3h15m".
func (s *Session) DurationString() string {
	return fmt.Sprintf("%dh%02dm", s.AccumulatedHours, s.AccumulatedMinutes)
}

// CollaboratorRef is the minimal view of a staff user this core needs.
// Full identity modeling lives with the identity collaborator.
type CollaboratorRef struct {
	ID          string
	DisplayName string
	Email       string
}
