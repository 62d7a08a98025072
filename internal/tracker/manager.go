// Package tracker implements the work-session lifecycle: start, pause,
// resume, and finish transitions over an append-only event log, with
// accumulated time reconstructed from that log.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/notify"
	"github.com/dvaldes/worklog/internal/store"
)

// DefaultMaxOpenSessions is how many pre-existing non-finished sessions a
// collaborator may hold before Start is rejected. The historical policy
// tolerates one, so a collaborator can run two sessions at once; set 0 for
// strict single-session tracking.
const DefaultMaxOpenSessions = 1

// Manager is the sole writer of sessions and their event logs. Each
// operation validates the transition, appends exactly one event, updates
// accumulated time, and persists session+event atomically.
type Manager struct {
	store    store.Store
	clock    Clock
	notifier notify.Notifier
	maxOpen  int
}

// NewManager creates a Manager. A nil clock defaults to the system clock, a
// nil notifier to a no-op, and a negative maxOpen to DefaultMaxOpenSessions.
func NewManager(s store.Store, clock Clock, notifier notify.Notifier, maxOpen int) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if maxOpen < 0 {
		maxOpen = DefaultMaxOpenSessions
	}
	return &Manager{store: s, clock: clock, notifier: notifier, maxOpen: maxOpen}
}

// StartInput describes a new live session.
type StartInput struct {
	CollaboratorID string
	ProjectID      string
	ServiceID      string
	Description    string
	Actor          string
}

// ManualEntryInput describes retroactive time recorded without live tracking.
type ManualEntryInput struct {
	CollaboratorID string
	ProjectID      string
	ServiceID      string
	Date           time.Time
	Hours          int
	Minutes        int
	Description    string
	Actor          string
}

// Start creates a session in the active state with its opening event. It is
// rejected when the collaborator already holds more than the permitted number
// of non-finished sessions.
func (m *Manager) Start(ctx context.Context, in StartInput) (*models.Session, error) {
	if in.CollaboratorID == "" || in.ProjectID == "" || in.ServiceID == "" {
		return nil, fmt.Errorf("%w: collaborator, project, and service are required", ErrValidation)
	}

	open, err := m.store.CountNonFinished(ctx, in.CollaboratorID)
	if err != nil {
		return nil, fmt.Errorf("%w: count open sessions: %v", ErrPersistence, err)
	}
	if open > m.maxOpen {
		return nil, fmt.Errorf("%w: collaborator %s has %d open sessions", ErrOpenSessionLimit, in.CollaboratorID, open)
	}

	now := m.clock.Now().UTC()
	sess := &models.Session{
		CollaboratorID: in.CollaboratorID,
		ProjectID:      in.ProjectID,
		ServiceID:      in.ServiceID,
		State:          models.SessionStateActive,
		Description:    in.Description,
		StartedAt:      now,
		CreatedBy:      in.Actor,
		UpdatedBy:      in.Actor,
	}
	event := &models.SessionEvent{
		Type:       models.EventTypeStart,
		OccurredAt: now,
		Actor:      in.Actor,
	}

	if err := m.store.CreateSession(ctx, sess, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	go m.notifier.SessionStarted(context.WithoutCancel(ctx), sess)
	return sess, nil
}

// Pause suspends an active session. The time worked since the last start or
// resume event is attributed to the pause event and added to the total.
func (m *Manager) Pause(ctx context.Context, sessionID, description, actor string) (*models.Session, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.SessionStateActive {
		return nil, fmt.Errorf("%w: cannot pause a %s session", ErrInvalidTransition, sess.State)
	}

	event, err := m.closeInterval(sess, models.EventTypePause, actor)
	if err != nil {
		return nil, err
	}
	sess.State = models.SessionStatePaused
	return m.commit(ctx, sess, event, description, actor)
}

// Resume reactivates a paused session with a zero-delta event.
func (m *Manager) Resume(ctx context.Context, sessionID, description, actor string) (*models.Session, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.SessionStatePaused {
		return nil, fmt.Errorf("%w: cannot resume a %s session", ErrInvalidTransition, sess.State)
	}

	now := m.clock.Now().UTC()
	if err := checkOrder(sess, now); err != nil {
		return nil, err
	}
	event := &models.SessionEvent{
		Type:       models.EventTypeResume,
		OccurredAt: now,
		Actor:      actor,
	}
	sess.State = models.SessionStateActive
	return m.commit(ctx, sess, event, description, actor)
}

// Finish closes an active session. A paused session must be resumed first;
// finished sessions accept no further transitions.
func (m *Manager) Finish(ctx context.Context, sessionID, description, actor string) (*models.Session, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case models.SessionStateFinished:
		return nil, fmt.Errorf("%w: session is already finished", ErrInvalidTransition)
	case models.SessionStatePaused:
		return nil, fmt.Errorf("%w: resume the session before finishing it", ErrInvalidTransition)
	}

	event, err := m.closeInterval(sess, models.EventTypeFinish, actor)
	if err != nil {
		return nil, err
	}
	sess.State = models.SessionStateFinished
	finishedAt := event.OccurredAt
	sess.FinishedAt = &finishedAt

	sess, err = m.commit(ctx, sess, event, description, actor)
	if err != nil {
		return nil, err
	}
	go m.notifier.SessionFinished(context.WithoutCancel(ctx), sess)
	return sess, nil
}

// CreateManualEntry records retroactive time as a session born finished, with
// a synthetic start/finish event pair sharing the supplied timestamp. It
// never becomes active, so the open-session guard does not apply.
func (m *Manager) CreateManualEntry(ctx context.Context, in ManualEntryInput) (*models.Session, error) {
	if in.CollaboratorID == "" || in.ProjectID == "" || in.ServiceID == "" {
		return nil, fmt.Errorf("%w: collaborator, project, and service are required", ErrValidation)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: entry date is required", ErrValidation)
	}
	if in.Hours < 0 || in.Minutes < 0 || in.Minutes > 59 {
		return nil, fmt.Errorf("%w: hours must be >= 0 and minutes in [0,59]", ErrValidation)
	}
	if in.Hours == 0 && in.Minutes == 0 {
		return nil, fmt.Errorf("%w: entry duration must be positive", ErrValidation)
	}

	at := in.Date.UTC()
	sess := &models.Session{
		CollaboratorID:     in.CollaboratorID,
		ProjectID:          in.ProjectID,
		ServiceID:          in.ServiceID,
		State:              models.SessionStateFinished,
		AccumulatedHours:   in.Hours,
		AccumulatedMinutes: in.Minutes,
		Description:        in.Description,
		StartedAt:          at,
		FinishedAt:         &at,
		CreatedBy:          in.Actor,
		UpdatedBy:          in.Actor,
	}
	start := &models.SessionEvent{
		Type:       models.EventTypeStart,
		OccurredAt: at,
		Actor:      in.Actor,
	}
	finish := &models.SessionEvent{
		Type:         models.EventTypeFinish,
		OccurredAt:   at,
		DeltaHours:   in.Hours,
		DeltaMinutes: in.Minutes,
		Actor:        in.Actor,
	}

	if err := m.store.CreateSession(ctx, sess, start, finish); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sess, nil
}

// Get loads a session with its event log.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.load(ctx, sessionID)
}

func (m *Manager) load(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := m.store.GetSessionWithEvents(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", ErrPersistence, err)
	}
	return sess, nil
}

// closeInterval builds the pause/finish event carrying the time elapsed since
// the most recent start or resume event, and folds it into the session total.
func (m *Manager) closeInterval(sess *models.Session, typ models.EventType, actor string) (*models.SessionEvent, error) {
	now := m.clock.Now().UTC()
	if err := checkOrder(sess, now); err != nil {
		return nil, err
	}

	anchor, ok := lastWorkAnchor(sess.Events)
	if !ok {
		return nil, fmt.Errorf("%w: session %s has no start or resume event", ErrPersistence, sess.ID)
	}

	elapsed := int(now.Sub(anchor).Minutes())
	event := &models.SessionEvent{
		Type:         typ,
		OccurredAt:   now,
		DeltaHours:   elapsed / 60,
		DeltaMinutes: elapsed % 60,
		Actor:        actor,
	}

	sess.AccumulatedHours += event.DeltaHours
	sess.AccumulatedMinutes += event.DeltaMinutes
	sess.AccumulatedHours, sess.AccumulatedMinutes = normalize(sess.AccumulatedHours, sess.AccumulatedMinutes)
	return event, nil
}

func (m *Manager) commit(ctx context.Context, sess *models.Session, event *models.SessionEvent, description, actor string) (*models.Session, error) {
	if description != "" {
		sess.Description = description
	}
	sess.UpdatedBy = actor

	if err := m.store.UpdateSessionAppendEvent(ctx, sess, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sess, nil
}

// checkOrder rejects transitions that would record an event before the last
// one in the log. Equal timestamps are tolerated; the log stays ordered.
func checkOrder(sess *models.Session, now time.Time) error {
	if len(sess.Events) == 0 {
		return nil
	}
	last := sess.Events[len(sess.Events)-1]
	if now.Before(last.OccurredAt) {
		return fmt.Errorf("%w: clock moved backwards (last event %s, now %s)",
			ErrValidation, last.OccurredAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

// lastWorkAnchor finds the most recent start or resume event, the point the
// current work interval opened at.
func lastWorkAnchor(events []*models.SessionEvent) (time.Time, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		switch events[i].Type {
		case models.EventTypeStart, models.EventTypeResume:
			return events[i].OccurredAt, true
		}
	}
	return time.Time{}, false
}

// normalize carries overflow minutes into hours so minutes stay in [0, 60).
func normalize(hours, minutes int) (int, int) {
	return hours + minutes/60, minutes % 60
}
