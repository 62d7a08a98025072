package models

import "time"

// EventType identifies a state transition recorded in a session's event log.
type EventType string

const (
	EventTypeStart  EventType = "start"
	EventTypePause  EventType = "pause"
	EventTypeResume EventType = "resume"
	EventTypeFinish EventType = "finish"
)

// SessionEvent is one append-only entry in a session's event log. The log is
// both the audit trail and the source of truth for elapsed-time computation:
// pause/finish events carry the time worked since the most recent
// start/resume event, start/resume events carry zero.
type SessionEvent struct {
	ID           string
	SessionID    string
	Type         EventType
	OccurredAt   time.Time
	DeltaHours   int
	DeltaMinutes int
	Actor        string
}

// DeltaMinutesTotal returns the event's attributed time flattened to minutes.
func (e *SessionEvent) DeltaMinutesTotal() int {
	return e.DeltaHours*60 + e.DeltaMinutes
}
