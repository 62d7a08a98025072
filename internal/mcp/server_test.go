package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/worklog/internal/report"
	"github.com/dvaldes/worklog/internal/store"
	"github.com/dvaldes/worklog/internal/tracker"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// newTestServer creates a Server backed by a real temp-dir store.
func newTestServer(t *testing.T) (*Server, *fakeClock) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m := tracker.NewManager(s, clock, nil, tracker.DefaultMaxOpenSessions)
	return NewServer(s, m), clock
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func startViaTool(t *testing.T, srv *Server, collaborator, project string) sessionOut {
	t.Helper()
	result, err := srv.handleStartSession(context.Background(), callToolReq("worklog_start_session", map[string]any{
		"collaborator": collaborator,
		"project":      project,
		"service":      "svc-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out sessionOut
	resultJSON(t, result, &out)
	return out
}

func TestMCPServer(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)
}

func TestHandleStartSession(t *testing.T) {
	srv, _ := newTestServer(t)

	out := startViaTool(t, srv, "carla", "proj-1")
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "carla", out.Collaborator)
	assert.Equal(t, "proj-1", out.Project)
	assert.Equal(t, "active", out.State)
	assert.Equal(t, "0h00m", out.Recorded)
	assert.Empty(t, out.FinishedAt)
}

func TestHandleStartSession_MissingArgs(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(), callToolReq("worklog_start_session", map[string]any{
		"collaborator": "carla",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSessionLifecycle_Tools(t *testing.T) {
	srv, clock := newTestServer(t)
	ctx := context.Background()

	out := startViaTool(t, srv, "carla", "proj-1")

	pause := srv.transitionHandler(srv.tracker.Pause, "pause session")
	resume := srv.transitionHandler(srv.tracker.Resume, "resume session")
	finish := srv.transitionHandler(srv.tracker.Finish, "finish session")
	args := map[string]any{"session_id": out.ID, "actor": "carla"}

	clock.now = clock.now.Add(90 * time.Minute)
	result, err := pause(ctx, callToolReq("worklog_pause_session", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var paused sessionOut
	resultJSON(t, result, &paused)
	assert.Equal(t, "paused", paused.State)
	assert.Equal(t, "1h30m", paused.Recorded)

	// Finishing while paused surfaces the transition error as a tool error.
	result, err = finish(ctx, callToolReq("worklog_finish_session", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "resume")

	clock.now = clock.now.Add(15 * time.Minute)
	result, err = resume(ctx, callToolReq("worklog_resume_session", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	clock.now = clock.now.Add(30 * time.Minute)
	result, err = finish(ctx, callToolReq("worklog_finish_session", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var finished sessionOut
	resultJSON(t, result, &finished)
	assert.Equal(t, "finished", finished.State)
	assert.Equal(t, "2h00m", finished.Recorded)
	assert.NotEmpty(t, finished.FinishedAt)
}

func TestHandleCreateEntry(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateEntry(ctx, callToolReq("worklog_create_entry", map[string]any{
		"collaborator": "carla",
		"project":      "proj-1",
		"service":      "svc-1",
		"date":         "2026-02-27",
		"hours":        3,
		"minutes":      15,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out sessionOut
	resultJSON(t, result, &out)
	assert.Equal(t, "finished", out.State)
	assert.Equal(t, "3h15m", out.Recorded)

	// Invalid date
	result, err = srv.handleCreateEntry(ctx, callToolReq("worklog_create_entry", map[string]any{
		"collaborator": "carla",
		"project":      "proj-1",
		"service":      "svc-1",
		"date":         "27.02.2026",
		"hours":        1,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid date")

	// Zero duration
	result, err = srv.handleCreateEntry(ctx, callToolReq("worklog_create_entry", map[string]any{
		"collaborator": "carla",
		"project":      "proj-1",
		"service":      "svc-1",
		"date":         "2026-02-27",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListSessions(ctx, callToolReq("worklog_list_sessions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var out []sessionOut
	resultJSON(t, result, &out)
	assert.Len(t, out, 0)

	startViaTool(t, srv, "carla", "proj-1")
	startViaTool(t, srv, "miguel", "proj-2")

	result, err = srv.handleListSessions(ctx, callToolReq("worklog_list_sessions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	resultJSON(t, result, &out)
	assert.Len(t, out, 2)

	result, err = srv.handleListSessions(ctx, callToolReq("worklog_list_sessions", map[string]any{
		"collaborator": "miguel",
	}))
	require.NoError(t, err)
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "proj-2", out[0].Project)

	result, err = srv.handleListSessions(ctx, callToolReq("worklog_list_sessions", map[string]any{
		"from": "banana",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleReport(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	for _, args := range []map[string]any{
		{"collaborator": "carla", "project": "proj-1", "service": "svc-1", "date": "2026-02-25", "hours": 2, "minutes": 30},
		{"collaborator": "miguel", "project": "proj-1", "service": "svc-1", "date": "2026-02-26", "hours": 1},
	} {
		result, err := srv.handleCreateEntry(ctx, callToolReq("worklog_create_entry", args))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))
	}

	result, err := srv.handleReport(ctx, callToolReq("worklog_report", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var r report.Report
	resultJSON(t, result, &r)
	assert.Equal(t, 2, r.Sessions)
	assert.Equal(t, 3, r.Hours)
	assert.Equal(t, 30, r.Minutes)
	require.Len(t, r.ByProject, 1)
	assert.Equal(t, "proj-1", r.ByProject[0].Key)
	assert.Equal(t, 2, r.ByProject[0].Sessions)
}
