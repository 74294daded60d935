package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/gateway"
	"github.com/heimdex/heimdex-editor/internal/journal"
	"github.com/heimdex/heimdex-editor/internal/suggest"
	"github.com/heimdex/heimdex-editor/internal/workspace"
)

const testToken = "test-token"

type testEnv struct {
	handler http.Handler
	ws      *workspace.Workspace
	gw      *gateway.MemoryClient
	store   *journal.SQLiteStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := journal.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := database.Store()
	if err := store.SetConfig(context.Background(), journal.ConfigAuthToken, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	gw := gateway.NewMemoryClient(logger)
	gw.SetResults("job-1", suggest.AnalysisResult{Assessment: suggest.Assessment{
		RiskLevel: suggest.LevelHigh,
		Risks: []suggest.RiskItem{
			{ID: "r1", Timestamp: 2, EndTimestamp: 4, Score: 0.8, Level: suggest.LevelHigh, Rationale: "slur"},
			{ID: "r2", Timestamp: 10, EndTimestamp: 11, Score: 0.2, Level: suggest.LevelLow, Rationale: "mild"},
		},
	}})

	ws := workspace.New(workspace.Options{
		Gateway:      gw,
		Journal:      store,
		Logger:       logger,
		PollInterval: 10 * time.Millisecond,
	})
	t.Cleanup(ws.Close)

	handler := NewRouter(ServerConfig{
		Workspace: ws,
		Journal:   store,
		Logger:    logger,
		StartTime: time.Now(),
		Version:   "test",
	})
	return &testEnv{handler: handler, ws: ws, gw: gw, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) open(t *testing.T, jobID string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/workspace/open", map[string]string{"job_id": jobID})
	if rr.Code != http.StatusOK {
		t.Fatalf("open %s: status = %d, body = %s", jobID, rr.Code, rr.Body.String())
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode JSON body: %v (body = %s)", err, rr.Body.String())
	}
	return body
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode session: %v (body = %s)", err, rr.Body.String())
	}
	return resp
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decodeJSONBody(t, rr)["code"].(string)
	return code
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("health body = %v", body)
	}
}

func TestRoutes_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRoutes_NoJobOpen(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/session", "/export", "/suggestions", "/journal/sessions"} {
		rr := env.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusConflict || errorCode(t, rr) != "NO_JOB" {
			t.Errorf("GET %s: status = %d, body = %s; want 409 NO_JOB", path, rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/workspace", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /workspace status = %d", rr.Code)
	}
	if _, ok := decodeJSONBody(t, rr)["session"]; ok {
		t.Fatal("workspace should carry no session when no job is open")
	}
}

func TestOpenJob_Validation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/workspace/open", map[string]string{"job_id": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank job_id status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	rr := env.do(t, http.MethodPost, "/session/actions", map[string]any{
		"type": "mosaic", "start_time": 1, "end_time": 3,
		"options": map[string]any{"x": 10, "y": 10, "width": 100, "height": 80, "blur_strength": 20},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rr.Code, rr.Body.String())
	}
	sess := decodeSession(t, rr)
	if len(sess.Actions) != 1 || !sess.CanUndo {
		t.Fatalf("after add = %+v", sess)
	}
	id := sess.Actions[0].ID
	if id == "" {
		t.Fatal("gateway did not assign an action id")
	}

	rr = env.do(t, http.MethodPut, "/session/actions/"+id, map[string]any{"type": "cut", "start_time": 1, "end_time": 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rr.Code, rr.Body.String())
	}
	sess = decodeSession(t, rr)
	if sess.Actions[0].Type != "cut" || sess.Actions[0].EndTime != 5 || sess.Actions[0].Options != nil {
		t.Fatalf("after update = %+v", sess.Actions[0])
	}

	rr = env.do(t, http.MethodDelete, "/session/actions/"+id, nil)
	if rr.Code != http.StatusOK || len(decodeSession(t, rr).Actions) != 0 {
		t.Fatalf("remove status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/session/undo", nil)
	sess = decodeSession(t, rr)
	if rr.Code != http.StatusOK || len(sess.Actions) != 1 || sess.Actions[0].Type != "cut" {
		t.Fatalf("undo status = %d, session = %+v", rr.Code, sess)
	}

	rr = env.do(t, http.MethodPost, "/session/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/journal/sessions?limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("journal status = %d", rr.Code)
	}
	var entries SessionEntriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if len(entries.Entries) != 6 || entries.Entries[0].Reason != "save" {
		t.Fatalf("journal entries = %d, newest = %+v", len(entries.Entries), entries.Entries[0])
	}
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"inverted range", http.MethodPost, "/session/actions", map[string]any{"type": "cut", "start_time": 5, "end_time": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown type", http.MethodPost, "/session/actions", map[string]any{"type": "blur", "start_time": 0, "end_time": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"telop without options", http.MethodPost, "/session/actions", map[string]any{"type": "telop", "start_time": 0, "end_time": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed body", http.MethodPost, "/session/actions", "not an action", http.StatusBadRequest, "BAD_REQUEST"},
		{"update missing id", http.MethodPut, "/session/actions/nope", map[string]any{"type": "cut", "start_time": 0, "end_time": 1}, http.StatusNotFound, "ACTION_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body = %s)", rr.Code, tt.status, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}

	rr := env.do(t, http.MethodDelete, "/session/actions/nope", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("removing an absent action status = %d, want 200", rr.Code)
	}
}

func TestReplaceActions(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	rr := env.do(t, http.MethodPut, "/session/actions", map[string]any{"actions": []map[string]any{
		{"type": "cut", "start_time": 0, "end_time": 1},
		{"type": "mute", "start_time": 2, "end_time": 3},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := len(decodeSession(t, rr).Actions); got != 2 {
		t.Fatalf("actions = %d, want 2", got)
	}
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	rr := env.do(t, http.MethodGet, "/suggestions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggestions status = %d", rr.Code)
	}
	var resp SuggestionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].ID != "r1" || resp.Suggestions[0].RiskLevel != 80 {
		t.Fatalf("suggestions = %+v", resp.Suggestions)
	}
	if len(resp.Graph) != 2 {
		t.Fatalf("graph points = %d, want 2", len(resp.Graph))
	}

	rr = env.do(t, http.MethodPost, "/suggestions/r1/apply", map[string]any{"type": "mute"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("apply status = %d, body = %s", rr.Code, rr.Body.String())
	}
	sess := decodeSession(t, rr)
	if len(sess.Actions) != 1 || sess.Actions[0].RiskItemID != "r1" || sess.Actions[0].Type != "mute" {
		t.Fatalf("applied = %+v", sess.Actions)
	}

	rr = env.do(t, http.MethodPost, "/suggestions/r2/apply", nil)
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "SUGGESTION_NOT_FOUND" {
		t.Fatalf("apply unknown status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/suggestions/apply-all", nil)
	sess = decodeSession(t, rr)
	if rr.Code != http.StatusOK || len(sess.Actions) != 1 || sess.Actions[0].Type != "cut" {
		t.Fatalf("apply-all status = %d, session = %+v", rr.Code, sess)
	}
}

func TestEDL(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	env.do(t, http.MethodPost, "/session/actions", map[string]any{"type": "cut", "start_time": 2, "end_time": 4})

	rr := env.do(t, http.MethodGet, "/session/edl?title=Episode%201&duration=10&frame_rate=25", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("edl status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Episode_1.edl") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "TITLE: Episode 1") {
		t.Errorf("edl does not start with title:\n%s", body)
	}
	if strings.Count(body, "* FROM CLIP NAME") != 2 {
		t.Errorf("edl should have two kept segments:\n%s", body)
	}

	rr = env.do(t, http.MethodGet, "/session/edl?frame_rate=fast", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad frame_rate status = %d, want 400", rr.Code)
	}
}

func TestVideo(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	rr := env.do(t, http.MethodGet, "/video", nil)
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "NOT_FOUND" {
		t.Fatalf("missing video status = %d, body = %s", rr.Code, rr.Body.String())
	}

	env.gw.SetVideoURL("job-1", gateway.VideoURL{URL: "https://cdn.example/v.mp4", ExpiresAt: "2026-10-16T10:00:00Z"})
	rr = env.do(t, http.MethodGet, "/video", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("video status = %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["url"]; got != "https://cdn.example/v.mp4" {
		t.Fatalf("url = %v", got)
	}
}

func TestExportLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")

	rr := env.do(t, http.MethodGet, "/export", nil)
	if rr.Code != http.StatusOK || decodeJSONBody(t, rr)["status"] != "none" {
		t.Fatalf("initial export = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/export", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	var body map[string]interface{}
	for time.Now().Before(deadline) {
		body = decodeJSONBody(t, env.do(t, http.MethodGet, "/export", nil))
		if body["download_url"] != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if body["status"] != "completed" || body["download_url"] == nil || body["polling"] != false {
		t.Fatalf("export did not complete: %v", body)
	}

	rr = env.do(t, http.MethodGet, "/journal/exports", nil)
	var entries ExportEntriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entries.Latest == nil || entries.Latest.Status != "completed" {
		t.Fatalf("latest export = %+v", entries.Latest)
	}
}

func TestSwitchingJobs(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "job-1")
	env.do(t, http.MethodPost, "/session/actions", map[string]any{"type": "cut", "start_time": 0, "end_time": 1})

	env.open(t, "job-2")
	rr := env.do(t, http.MethodGet, "/session", nil)
	sess := decodeSession(t, rr)
	if sess.JobID != "job-2" || len(sess.Actions) != 0 || sess.CanUndo {
		t.Fatalf("job-2 session = %+v", sess)
	}

	rr = env.do(t, http.MethodPost, "/workspace/close", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("close status = %d", rr.Code)
	}
	if env.ws.JobID() != "" {
		t.Fatalf("JobID() = %q after close", env.ws.JobID())
	}
}
