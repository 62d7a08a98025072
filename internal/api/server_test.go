package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/report"
	"github.com/dvaldes/worklog/internal/store"
	"github.com/dvaldes/worklog/internal/tracker"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func setupTestServer(t *testing.T) (*Server, *fakeClock) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m := tracker.NewManager(s, clock, nil, tracker.DefaultMaxOpenSessions)
	return NewServer(s, m, nil), clock
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionLifecycle_API(t *testing.T) {
	srv, clock := setupTestServer(t)
	router := srv.Router()

	// Start
	body := `{"collaborator_id":"carla","project_id":"proj-1","service_id":"svc-1","description":"api work","actor":"carla"}`
	w := doJSON(t, router, "POST", "/api/v1/sessions", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.SessionStateActive, created.State)

	// Pause after 90 minutes
	clock.now = clock.now.Add(90 * time.Minute)
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+created.ID+"/pause", `{"actor":"carla"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var paused models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paused))
	assert.Equal(t, models.SessionStatePaused, paused.State)
	assert.Equal(t, 1, paused.AccumulatedHours)
	assert.Equal(t, 30, paused.AccumulatedMinutes)

	// Resume, then finish after 30 more minutes of work
	clock.now = clock.now.Add(15 * time.Minute)
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+created.ID+"/resume", `{"actor":"carla"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	clock.now = clock.now.Add(30 * time.Minute)
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+created.ID+"/finish", `{"actor":"carla"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var finished models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &finished))
	assert.Equal(t, models.SessionStateFinished, finished.State)
	assert.Equal(t, 2, finished.AccumulatedHours)
	assert.Equal(t, 0, finished.AccumulatedMinutes)
	assert.NotNil(t, finished.FinishedAt)

	// Get with full event log
	req := httptest.NewRequest("GET", "/api/v1/sessions/"+created.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Events, 4)
}

func TestStartSession_Validation(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/sessions", `{"collaborator_id":"carla"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/sessions", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransition_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/sessions/nonexistent/pause", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/sessions/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransition_Conflict(t *testing.T) {
	srv, clock := setupTestServer(t)
	router := srv.Router()

	body := `{"collaborator_id":"carla","project_id":"proj-1","service_id":"svc-1","actor":"carla"}`
	w := doJSON(t, router, "POST", "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))

	clock.now = clock.now.Add(time.Minute)
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+sess.ID+"/pause", `{"actor":"carla"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Finishing a paused session is an invalid transition.
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+sess.ID+"/finish", `{"actor":"carla"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var body2 map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body2))
	assert.Contains(t, body2["error"], "resume")
}

func TestStartSession_OpenLimit(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	start := func(project string) *httptest.ResponseRecorder {
		body := `{"collaborator_id":"carla","project_id":"` + project + `","service_id":"svc-1","actor":"carla"}`
		return doJSON(t, router, "POST", "/api/v1/sessions", body)
	}

	require.Equal(t, http.StatusCreated, start("proj-1").Code)
	require.Equal(t, http.StatusCreated, start("proj-2").Code)
	assert.Equal(t, http.StatusConflict, start("proj-3").Code)
}

func TestCreateEntry_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	body := `{"collaborator_id":"carla","project_id":"proj-1","service_id":"svc-1","date":"2026-02-27","hours":3,"minutes":15,"actor":"carla"}`
	w := doJSON(t, router, "POST", "/api/v1/entries", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, models.SessionStateFinished, sess.State)
	assert.Equal(t, 3, sess.AccumulatedHours)
	assert.Equal(t, 15, sess.AccumulatedMinutes)

	// Bad date
	w = doJSON(t, router, "POST", "/api/v1/entries", `{"collaborator_id":"carla","project_id":"p","service_id":"s","date":"27.02.2026","hours":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Minutes out of range
	w = doJSON(t, router, "POST", "/api/v1/entries", `{"collaborator_id":"carla","project_id":"p","service_id":"s","date":"2026-02-27","minutes":60}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListSessions_API(t *testing.T) {
	srv, clock := setupTestServer(t)
	router := srv.Router()

	body := `{"collaborator_id":"carla","project_id":"proj-1","service_id":"svc-1","actor":"carla"}`
	w := doJSON(t, router, "POST", "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))

	clock.now = clock.now.Add(time.Minute)
	w = doJSON(t, router, "POST", "/api/v1/sessions/"+sess.ID+"/finish", `{"actor":"carla"}`)
	require.Equal(t, http.StatusOK, w.Code)

	entry := `{"collaborator_id":"miguel","project_id":"proj-2","service_id":"svc-1","date":"2026-02-27","hours":1,"actor":"miguel"}`
	w = doJSON(t, router, "POST", "/api/v1/entries", entry)
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sessions []*models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)

	// Filtered by collaborator
	req = httptest.NewRequest("GET", "/api/v1/sessions?collaborator=miguel", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	// Open only: everything is finished by now
	req = httptest.NewRequest("GET", "/api/v1/sessions?open=true", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 0)

	// Bad date filter
	req = httptest.NewRequest("GET", "/api/v1/sessions?from=banana", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	for _, e := range []string{
		`{"collaborator_id":"carla","project_id":"proj-1","service_id":"svc-1","date":"2026-02-25","hours":2,"minutes":30,"actor":"carla"}`,
		`{"collaborator_id":"miguel","project_id":"proj-1","service_id":"svc-1","date":"2026-02-26","hours":1,"actor":"miguel"}`,
		`{"collaborator_id":"carla","project_id":"proj-2","service_id":"svc-1","date":"2026-02-27","minutes":45,"actor":"carla"}`,
	} {
		w := doJSON(t, router, "POST", "/api/v1/entries", e)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, 3, r.Sessions)
	assert.Equal(t, 0, r.OpenSessions)
	assert.Equal(t, 4, r.Hours)
	assert.Equal(t, 15, r.Minutes)
	require.Len(t, r.ByProject, 2)
	assert.Equal(t, "proj-1", r.ByProject[0].Key)

	// Date-bounded report
	req = httptest.NewRequest("GET", "/api/v1/report?from=2026-02-26&to=2026-02-27", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, 2, r.Sessions)
	assert.Equal(t, 1, r.Hours)
	assert.Equal(t, 45, r.Minutes)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest("OPTIONS", "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
