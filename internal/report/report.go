// Package report aggregates recorded sessions into time totals per project
// and per collaborator.
package report

import (
	"sort"
	"time"

	"github.com/dvaldes/worklog/internal/models"
)

// Total is an aggregated time bucket keyed by project or collaborator id.
type Total struct {
	Key      string
	Sessions int
	Hours    int
	Minutes  int
}

// TotalMinutes flattens the bucket to minutes.
func (t Total) TotalMinutes() int {
	return t.Hours*60 + t.Minutes
}

// Report summarizes a set of sessions.
type Report struct {
	From           *time.Time
	To             *time.Time
	Sessions       int
	OpenSessions   int
	Hours          int
	Minutes        int
	ByProject      []Total
	ByCollaborator []Total
}

// Build computes a Report over the given sessions. Buckets are sorted by
// recorded time, largest first.
func Build(sessions []*models.Session, from, to *time.Time) *Report {
	r := &Report{From: from, To: to}

	projects := map[string]*Total{}
	collaborators := map[string]*Total{}

	totalMinutes := 0
	for _, sess := range sessions {
		r.Sessions++
		if sess.Open() {
			r.OpenSessions++
		}
		totalMinutes += sess.TotalMinutes()
		add(projects, sess.ProjectID, sess)
		add(collaborators, sess.CollaboratorID, sess)
	}

	r.Hours = totalMinutes / 60
	r.Minutes = totalMinutes % 60
	r.ByProject = sorted(projects)
	r.ByCollaborator = sorted(collaborators)
	return r
}

func add(buckets map[string]*Total, key string, sess *models.Session) {
	t, ok := buckets[key]
	if !ok {
		t = &Total{Key: key}
		buckets[key] = t
	}
	t.Sessions++
	minutes := t.TotalMinutes() + sess.TotalMinutes()
	t.Hours = minutes / 60
	t.Minutes = minutes % 60
}

func sorted(buckets map[string]*Total) []Total {
	out := make([]Total, 0, len(buckets))
	for _, t := range buckets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMinutes() != out[j].TotalMinutes() {
			return out[i].TotalMinutes() > out[j].TotalMinutes()
		}
		return out[i].Key < out[j].Key
	})
	return out
}
