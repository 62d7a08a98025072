// Package notify delivers best-effort status emails for session transitions.
// Delivery failures are logged, never propagated: a transition that persisted
// is fully successful even when its mail could not be sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dvaldes/worklog/internal/models"
)

// Mailer is the outbound email collaborator.
type Mailer interface {
	SendAssignmentOrStatusEmail(ctx context.Context, recipient, subject, body string) error
}

// Directory resolves collaborator ids to their contact details. Identity
// management is external; this is the only surface the core needs from it.
type Directory interface {
	Collaborator(ctx context.Context, id string) (models.CollaboratorRef, error)
}

// Notifier announces session transitions. Implementations must be safe for
// concurrent use; the tracker calls them fire-and-forget.
type Notifier interface {
	SessionStarted(ctx context.Context, sess *models.Session)
	SessionFinished(ctx context.Context, sess *models.Session)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) SessionStarted(context.Context, *models.Session)  {}
func (NopNotifier) SessionFinished(context.Context, *models.Session) {}

// MailNotifier resolves the collaborator and sends a status mail.
type MailNotifier struct {
	mailer Mailer
	dir    Directory
	logger *slog.Logger
}

// NewMailNotifier creates a MailNotifier. A nil logger falls back to the
// default slog logger.
func NewMailNotifier(mailer Mailer, dir Directory, logger *slog.Logger) *MailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailNotifier{mailer: mailer, dir: dir, logger: logger}
}

func (n *MailNotifier) SessionStarted(ctx context.Context, sess *models.Session) {
	subject := fmt.Sprintf("Work session started on project %s", sess.ProjectID)
	body := fmt.Sprintf("Session %s started at %s.\n\n%s",
		sess.ID, sess.StartedAt.Format("2006-01-02 15:04 MST"), sess.Description)
	n.send(ctx, sess, subject, body)
}

func (n *MailNotifier) SessionFinished(ctx context.Context, sess *models.Session) {
	subject := fmt.Sprintf("Work session finished on project %s", sess.ProjectID)
	body := fmt.Sprintf("Session %s finished with %s recorded.\n\n%s",
		sess.ID, sess.DurationString(), sess.Description)
	n.send(ctx, sess, subject, body)
}

func (n *MailNotifier) send(ctx context.Context, sess *models.Session, subject, body string) {
	ref, err := n.dir.Collaborator(ctx, sess.CollaboratorID)
	if err != nil {
		n.logger.Warn("notify: resolve collaborator failed",
			"session", sess.ID, "collaborator", sess.CollaboratorID, "error", err)
		return
	}
	if err := n.mailer.SendAssignmentOrStatusEmail(ctx, ref.Email, subject, body); err != nil {
		n.logger.Warn("notify: send failed",
			"session", sess.ID, "recipient", ref.Email, "error", err)
	}
}

// LogMailer is the default Mailer: it records the mail instead of sending it.
// Real SMTP delivery belongs to the hosting application.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendAssignmentOrStatusEmail(_ context.Context, recipient, subject, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail", "recipient", recipient, "subject", subject)
	return nil
}

// StaticDirectory is a Directory backed by a fixed set of collaborators,
// useful for CLI configuration and tests.
type StaticDirectory map[string]models.CollaboratorRef

func (d StaticDirectory) Collaborator(_ context.Context, id string) (models.CollaboratorRef, error) {
	if ref, ok := d[id]; ok {
		return ref, nil
	}
	// Unknown collaborators still get a ref; the id doubles as the address
	// so a misconfigured directory degrades to a logged mail, not a failure.
	return models.CollaboratorRef{ID: id, DisplayName: id, Email: id}, nil
}
