// Package mcp exposes the session tracker as MCP tools over stdio so agent
// frontends can record and query work time natively.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/report"
	"github.com/dvaldes/worklog/internal/store"
	"github.com/dvaldes/worklog/internal/tracker"
)

// Server wraps the worklog data layer and exposes it as MCP tools.
type Server struct {
	store   store.Store
	tracker *tracker.Manager
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store, m *tracker.Manager) *Server {
	return &Server{store: s, tracker: m}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("worklog", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.startSessionTool())
	srv.AddTool(s.pauseSessionTool())
	srv.AddTool(s.resumeSessionTool())
	srv.AddTool(s.finishSessionTool())
	srv.AddTool(s.createEntryTool())
	srv.AddTool(s.listSessionsTool())
	srv.AddTool(s.reportTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// sessionOut is the JSON shape returned for a session by every tool.
type sessionOut struct {
	ID           string `json:"id"`
	Collaborator string `json:"collaborator"`
	Project      string `json:"project"`
	Service      string `json:"service"`
	State        string `json:"state"`
	Recorded     string `json:"recorded"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// worklog_start_session
func (s *Server) startSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_start_session",
		mcp.WithDescription("Start a new work session for a collaborator against a project/service. Fails if the collaborator already has too many open sessions."),
		mcp.WithString("collaborator", mcp.Required(), mcp.Description("Collaborator id")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service id")),
		mcp.WithString("description", mcp.Description("Free-text annotation")),
		mcp.WithString("actor", mcp.Description("Who triggers the event; defaults to the collaborator")),
	)
	return tool, s.handleStartSession
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collaborator, err := request.RequireString("collaborator")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	service, err := request.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actor := request.GetString("actor", collaborator)

	sess, err := s.tracker.Start(ctx, tracker.StartInput{
		CollaboratorID: collaborator,
		ProjectID:      project,
		ServiceID:      service,
		Description:    request.GetString("description", ""),
		Actor:          actor,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start session: %v", err)), nil
	}
	return sessionResult(sess)
}

// worklog_pause_session
func (s *Server) pauseSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_pause_session",
		mcp.WithDescription("Pause an active work session. The time since the last start/resume is added to the session total."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("description", mcp.Description("Updated annotation")),
		mcp.WithString("actor", mcp.Description("Who triggers the event")),
	)
	return tool, s.transitionHandler(s.tracker.Pause, "pause session")
}

// worklog_resume_session
func (s *Server) resumeSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_resume_session",
		mcp.WithDescription("Resume a paused work session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("description", mcp.Description("Updated annotation")),
		mcp.WithString("actor", mcp.Description("Who triggers the event")),
	)
	return tool, s.transitionHandler(s.tracker.Resume, "resume session")
}

// worklog_finish_session
func (s *Server) finishSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_finish_session",
		mcp.WithDescription("Finish an active work session. Paused sessions must be resumed first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("description", mcp.Description("Updated annotation")),
		mcp.WithString("actor", mcp.Description("Who triggers the event")),
	)
	return tool, s.transitionHandler(s.tracker.Finish, "finish session")
}

func (s *Server) transitionHandler(op func(ctx context.Context, id, description, actor string) (*models.Session, error), label string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sess, err := op(ctx, id, request.GetString("description", ""), request.GetString("actor", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", label, err)), nil
		}
		return sessionResult(sess)
	}
}

// worklog_create_entry
func (s *Server) createEntryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_create_entry",
		mcp.WithDescription("Record retroactive work time as a finished session, without live tracking."),
		mcp.WithString("collaborator", mcp.Required(), mcp.Description("Collaborator id")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service id")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date, YYYY-MM-DD")),
		mcp.WithNumber("hours", mcp.Description("Whole hours worked")),
		mcp.WithNumber("minutes", mcp.Description("Minutes worked, 0-59")),
		mcp.WithString("description", mcp.Description("Free-text annotation")),
		mcp.WithString("actor", mcp.Description("Who records the entry; defaults to the collaborator")),
	)
	return tool, s.handleCreateEntry
}

func (s *Server) handleCreateEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collaborator, err := request.RequireString("collaborator")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	service, err := request.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dateStr, err := request.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date %q: %v", dateStr, err)), nil
	}

	sess, err := s.tracker.CreateManualEntry(ctx, tracker.ManualEntryInput{
		CollaboratorID: collaborator,
		ProjectID:      project,
		ServiceID:      service,
		Date:           date,
		Hours:          request.GetInt("hours", 0),
		Minutes:        request.GetInt("minutes", 0),
		Description:    request.GetString("description", ""),
		Actor:          request.GetString("actor", collaborator),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create entry: %v", err)), nil
	}
	return sessionResult(sess)
}

// worklog_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_list_sessions",
		mcp.WithDescription("List work sessions ordered by start time, newest first. Returns a JSON array with id, collaborator, project, service, state, recorded time, and timestamps."),
		mcp.WithString("collaborator", mcp.Description("Filter by collaborator id")),
		mcp.WithString("project", mcp.Description("Filter by project id")),
		mcp.WithString("from", mcp.Description("Start of date range, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("End of date range (inclusive), YYYY-MM-DD")),
		mcp.WithBoolean("open", mcp.Description("Only sessions not yet finished")),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, errResult := filterFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}
	sessions, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions: %v", err)), nil
	}

	out := make([]sessionOut, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionJSON(sess)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// worklog_report
func (s *Server) reportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("worklog_report",
		mcp.WithDescription("Aggregate recorded time per project and per collaborator over an optional date range."),
		mcp.WithString("collaborator", mcp.Description("Filter by collaborator id")),
		mcp.WithString("project", mcp.Description("Filter by project id")),
		mcp.WithString("from", mcp.Description("Start of date range, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("End of date range (inclusive), YYYY-MM-DD")),
	)
	return tool, s.handleReport
}

func (s *Server) handleReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, errResult := filterFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}
	sessions, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions: %v", err)), nil
	}
	data, err := json.Marshal(report.Build(sessions, filter.DateFrom, filter.DateTo))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func filterFromRequest(request mcp.CallToolRequest) (store.SessionFilter, *mcp.CallToolResult) {
	filter := store.SessionFilter{
		CollaboratorID:  request.GetString("collaborator", ""),
		ProjectID:       request.GetString("project", ""),
		NonFinishedOnly: request.GetBool("open", false),
	}
	if v := request.GetString("from", ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, mcp.NewToolResultError(fmt.Sprintf("invalid from date %q: %v", v, err))
		}
		filter.DateFrom = &t
	}
	if v := request.GetString("to", ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, mcp.NewToolResultError(fmt.Sprintf("invalid to date %q: %v", v, err))
		}
		filter.DateTo = &t
	}
	return filter, nil
}

func sessionResult(sess *models.Session) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(sessionJSON(sess))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func sessionJSON(sess *models.Session) sessionOut {
	out := sessionOut{
		ID:           sess.ID,
		Collaborator: sess.CollaboratorID,
		Project:      sess.ProjectID,
		Service:      sess.ServiceID,
		State:        string(sess.State),
		Recorded:     sess.DurationString(),
		StartedAt:    sess.StartedAt.Format(time.RFC3339),
		Description:  sess.Description,
	}
	if sess.FinishedAt != nil {
		out.FinishedAt = sess.FinishedAt.Format(time.RFC3339)
	}
	return out
}
