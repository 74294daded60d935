package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

// memoryProgressStep is how far a simulated export advances per status poll.
const memoryProgressStep = 25

// MemoryClient is an in-process gateway used when the agent runs offline.
// Sessions live only as long as the process, and exports advance a fixed
// step each time their status is read.
type MemoryClient struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*edit.Session
	exports  map[string]*memoryExport
	results  map[string]*suggest.AnalysisResult
	videos   map[string]*VideoURL
}

type memoryExport struct {
	id       string
	status   export.Status
	progress float64
}

func NewMemoryClient(logger *slog.Logger) *MemoryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryClient{
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*edit.Session),
		exports:  make(map[string]*memoryExport),
		results:  make(map[string]*suggest.AnalysisResult),
		videos:   make(map[string]*VideoURL),
	}
}

// SetResults seeds the analysis result returned for jobID.
func (m *MemoryClient) SetResults(jobID string, res suggest.AnalysisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[jobID] = &res
}

func (m *MemoryClient) SetVideoURL(jobID string, v VideoURL) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[jobID] = &v
}

func (m *MemoryClient) GetEditSession(ctx context.Context, jobID string) (*edit.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessionLocked(jobID)
	out := s.Clone()
	return &out, nil
}

// ReplaceEditSession stores actions as the whole list. Ids it did not
// issue are rejected the way the real gateway rejects them.
func (m *MemoryClient) ReplaceEditSession(ctx context.Context, jobID string, actions []edit.Action) (*edit.Session, error) {
	if err := edit.ValidateAll(actions); err != nil {
		return nil, &StatusError{StatusCode: http.StatusUnprocessableEntity, Body: detailBody(err.Error())}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessionLocked(jobID)

	known := make(map[string]edit.Action, len(s.Actions))
	for _, a := range s.Actions {
		known[a.ID] = a
	}

	now := m.now().UTC()
	next := make([]edit.Action, 0, len(actions))
	for _, a := range edit.CloneActions(actions) {
		if a.ID == "" {
			a.ID = uuid.NewString()
			created := now
			a.CreatedAt = &created
		} else {
			prev, ok := known[a.ID]
			if !ok {
				return nil, &StatusError{StatusCode: http.StatusBadRequest, Body: detailBody(fmt.Sprintf("unknown action id: %s", a.ID))}
			}
			a.CreatedAt = prev.CreatedAt
		}
		next = append(next, a)
	}

	s.Actions = next
	s.UpdatedAt = now
	out := s.Clone()
	return &out, nil
}

func (m *MemoryClient) StartExport(ctx context.Context, jobID string) (*export.StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.exports[jobID]; ok && e.status.Active() {
		return nil, &StatusError{StatusCode: http.StatusConflict, Body: detailBody("export already in progress")}
	}
	s := m.sessionLocked(jobID)
	s.Status = edit.SessionExporting

	e := &memoryExport{id: uuid.NewString(), status: export.StatusPending}
	m.exports[jobID] = e
	m.logger.Info("memory gateway: export started", "job_id", jobID, "export_id", e.id)
	return &export.StartResult{ExportID: e.id, Status: e.status}, nil
}

func (m *MemoryClient) GetExportStatus(ctx context.Context, jobID string) (*export.StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.exports[jobID]
	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Body: detailBody("no export found")}
	}

	if e.status.Active() {
		e.progress += memoryProgressStep
		e.status = export.StatusProcessing
		if e.progress >= 100 {
			e.progress = 100
			e.status = export.StatusCompleted
			m.sessionLocked(jobID).Status = edit.SessionCompleted
		}
	}

	id := e.id
	return &export.StatusResult{ExportID: &id, Status: e.status, Progress: e.progress}, nil
}

func (m *MemoryClient) GetExportDownload(ctx context.Context, jobID string) (*export.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.exports[jobID]
	if !ok || e.status != export.StatusCompleted {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Body: detailBody("export not completed")}
	}
	return &export.Download{
		URL:       fmt.Sprintf("memory://exports/%s/%s.mp4", jobID, e.id),
		ExpiresAt: m.now().Add(time.Hour).UTC().Format(time.RFC3339),
	}, nil
}

func (m *MemoryClient) GetResults(ctx context.Context, jobID string) (*suggest.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if res, ok := m.results[jobID]; ok {
		cp := *res
		cp.Assessment.Risks = append([]suggest.RiskItem(nil), res.Assessment.Risks...)
		return &cp, nil
	}
	return &suggest.AnalysisResult{Assessment: suggest.Assessment{RiskLevel: suggest.LevelNone, Risks: []suggest.RiskItem{}}}, nil
}

func (m *MemoryClient) GetVideoURL(ctx context.Context, jobID string) (*VideoURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[jobID]
	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Body: detailBody("video not found")}
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryClient) sessionLocked(jobID string) *edit.Session {
	s, ok := m.sessions[jobID]
	if !ok {
		now := m.now().UTC()
		s = &edit.Session{
			ID:        uuid.NewString(),
			JobID:     jobID,
			Status:    edit.SessionDraft,
			Actions:   []edit.Action{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.sessions[jobID] = s
	}
	return s
}

func detailBody(msg string) string {
	b, _ := json.Marshal(map[string]string{"detail": msg})
	return string(b)
}
