package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dvaldes/worklog/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors under concurrent callers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ulidEntropy is shared across calls so the monotonic guarantee holds:
// ULIDs generated within the same millisecond still sort in creation order.
var ulidEntropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

// newULID generates a new ULID string.
func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session, events ...*models.SessionEvent) error {
	if session.ID == "" {
		session.ID = newULID()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Version == 0 {
		session.Version = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, collaborator_id, project_id, service_id, state, accumulated_hours, accumulated_minutes, description, started_at, finished_at, created_by, created_at, updated_by, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.CollaboratorID, session.ProjectID, session.ServiceID,
		string(session.State), session.AccumulatedHours, session.AccumulatedMinutes,
		session.Description, session.StartedAt, session.FinishedAt,
		session.CreatedBy, session.CreatedAt, session.UpdatedBy, session.UpdatedAt, session.Version,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	for _, e := range events {
		if err := insertEvent(ctx, tx, session.ID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	session.Events = append(session.Events, events...)
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, sessionID string, e *models.SessionEvent) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	e.SessionID = sessionID
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (id, session_id, event_type, occurred_at, delta_hours, delta_minutes, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, string(e.Type), e.OccurredAt, e.DeltaHours, e.DeltaMinutes, e.Actor,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const sessionColumns = `id, collaborator_id, project_id, service_id, state, accumulated_hours, accumulated_minutes, description, started_at, finished_at, created_by, created_at, updated_by, updated_at, version, deleted_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	sess := &models.Session{}
	var state string
	var finishedAt, deletedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.CollaboratorID, &sess.ProjectID, &sess.ServiceID,
		&state, &sess.AccumulatedHours, &sess.AccumulatedMinutes, &sess.Description,
		&sess.StartedAt, &finishedAt, &sess.CreatedBy, &sess.CreatedAt,
		&sess.UpdatedBy, &sess.UpdatedAt, &sess.Version, &deletedAt)
	if err != nil {
		return nil, err
	}
	sess.State = models.SessionState(state)
	if finishedAt.Valid {
		t := finishedAt.Time
		sess.FinishedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		sess.DeletedAt = &t
	}
	return sess, nil
}

func (s *SQLiteStore) GetSessionWithEvents(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND deleted_at IS NULL`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, occurred_at, delta_hours, delta_minutes, actor
		FROM session_events WHERE session_id = ? ORDER BY occurred_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		e := &models.SessionEvent{}
		var eventType string
		if err := rows.Scan(&e.ID, &e.SessionID, &eventType, &e.OccurredAt, &e.DeltaHours, &e.DeltaMinutes, &e.Actor); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = models.EventType(eventType)
		sess.Events = append(sess.Events, e)
	}
	return sess, rows.Err()
}

func (s *SQLiteStore) UpdateSessionAppendEvent(ctx context.Context, session *models.Session, event *models.SessionEvent) error {
	session.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET state=?, accumulated_hours=?, accumulated_minutes=?, description=?, finished_at=?, updated_by=?, updated_at=?, version=version+1
		WHERE id=? AND version=? AND deleted_at IS NULL`,
		string(session.State), session.AccumulatedHours, session.AccumulatedMinutes,
		session.Description, session.FinishedAt, session.UpdatedBy, session.UpdatedAt,
		session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		// Distinguish a stale version from a missing row.
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ? AND deleted_at IS NULL`, session.ID).Scan(&count); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, session.ID)
		}
		return fmt.Errorf("%w: %s", ErrConflict, session.ID)
	}

	if err := insertEvent(ctx, tx, session.ID, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	session.Version++
	session.Events = append(session.Events, event)
	return nil
}

func (s *SQLiteStore) CountNonFinished(ctx context.Context, collaboratorID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE collaborator_id = ? AND state != ? AND deleted_at IS NULL`,
		collaboratorID, string(models.SessionStateFinished),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count non-finished sessions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	var clauses []string
	var args []any

	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.CollaboratorID != "" {
		clauses = append(clauses, "collaborator_id = ?")
		args = append(args, filter.CollaboratorID)
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.DateFrom != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, endOfDay(*filter.DateTo))
	}
	if filter.NonFinishedOnly {
		clauses = append(clauses, "state != ?")
		args = append(args, string(models.SessionStateFinished))
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// endOfDay pushes a date-range upper bound to the last instant of its day so
// the bound is inclusive of sessions started any time that day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
