// Package workspace binds the agent to one job at a time. Opening a job
// builds its edit-session and export coordinators; opening another or
// closing tears them down so nothing from the old job can touch the new one.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/gateway"
	"github.com/heimdex/heimdex-editor/internal/journal"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/session"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

var (
	ErrNoJob              = errors.New("no job is open")
	ErrSuggestionNotFound = errors.New("suggestion not found")
)

// Journal is the part of the local journal the workspace writes to.
type Journal interface {
	RecordSession(ctx context.Context, s edit.Session, reason string) error
	RecordExport(ctx context.Context, e *journal.ExportEntry) error
	SetConfig(ctx context.Context, key, value string) error
}

type Options struct {
	Gateway      gateway.Client
	Journal      Journal
	Logger       *slog.Logger
	HistoryLimit int
	PollInterval time.Duration
	// SuggestionLevel picks which risks become suggestions. Defaults to high.
	SuggestionLevel suggest.RiskLevel
	// OnChange is called after any session or export change of the open job.
	OnChange func()
}

type Workspace struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	binding *binding
}

type binding struct {
	jobID   string
	session *session.Coordinator
	export  *export.Coordinator

	suggestMu   sync.Mutex
	result      *suggest.AnalysisResult
	suggestions []suggest.Suggestion

	lastExport exportMark
}

// exportMark remembers the last export state written to the journal so
// steady progress ticks are not logged one by one.
type exportMark struct {
	mu       sync.Mutex
	status   export.Status
	download string
}

func New(opts Options) *Workspace {
	if opts.SuggestionLevel == "" {
		opts.SuggestionLevel = suggest.LevelHigh
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{opts: opts, logger: logging.WithComponent(logger, "workspace")}
}

// Open binds jobID, loads its edit session, and mounts its export. A load
// failure is recorded in the session state and returned, but the job stays
// open so the caller can reload.
func (w *Workspace) Open(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("%w: empty job id", ErrNoJob)
	}

	b := &binding{jobID: jobID}
	jobLogger := logging.WithJobID(w.logger, jobID)
	b.session = session.NewCoordinator(jobID, w.opts.Gateway, session.Options{
		HistoryLimit: w.opts.HistoryLimit,
		Logger:       logging.WithComponent(w.logger, "session"),
		OnCommit:     w.recordSession,
	})
	b.export = export.NewCoordinator(jobID, w.opts.Gateway, export.Options{
		PollInterval: w.opts.PollInterval,
		Logger:       logging.WithComponent(w.logger, "export"),
		OnChange:     func(st export.State) { w.recordExport(b, st) },
	})

	w.mu.Lock()
	old := w.binding
	w.binding = b
	w.mu.Unlock()

	if old != nil {
		old.close()
		jobLogger.Info("switched job", "previous_job_id", old.jobID)
	}

	if w.opts.Journal != nil {
		if err := w.opts.Journal.SetConfig(ctx, journal.ConfigLastJobID, jobID); err != nil {
			jobLogger.Warn("failed to remember last job", "error", err)
		}
	}

	_, loadErr := b.session.Load(ctx)
	b.export.Mount(ctx)
	w.changed()

	if loadErr != nil {
		return loadErr
	}
	jobLogger.Info("job opened")
	return nil
}

// Close unbinds the current job. It is a no-op when nothing is open.
func (w *Workspace) Close() {
	w.mu.Lock()
	old := w.binding
	w.binding = nil
	w.mu.Unlock()

	if old != nil {
		old.close()
		logging.WithJobID(w.logger, old.jobID).Info("job closed")
		w.changed()
	}
}

func (b *binding) close() {
	b.export.Close()
	b.session.Close()
}

func (w *Workspace) current() (*binding, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.binding == nil {
		return nil, ErrNoJob
	}
	return w.binding, nil
}

// JobID returns the open job, or "" if none.
func (w *Workspace) JobID() string {
	b, err := w.current()
	if err != nil {
		return ""
	}
	return b.jobID
}

func (w *Workspace) Session() (*session.Coordinator, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	return b.session, nil
}

func (w *Workspace) Export() (*export.Coordinator, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	return b.export, nil
}

// Results returns the open job's analysis, fetching it on first use.
func (w *Workspace) Results(ctx context.Context) (*suggest.AnalysisResult, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	if err := w.loadResults(ctx, b); err != nil {
		return nil, err
	}
	b.suggestMu.Lock()
	defer b.suggestMu.Unlock()
	return b.result, nil
}

// Suggestions returns the open job's suggestions, fetching the analysis
// on first use.
func (w *Workspace) Suggestions(ctx context.Context) ([]suggest.Suggestion, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	if err := w.loadResults(ctx, b); err != nil {
		return nil, err
	}
	b.suggestMu.Lock()
	defer b.suggestMu.Unlock()
	return append([]suggest.Suggestion(nil), b.suggestions...), nil
}

func (w *Workspace) loadResults(ctx context.Context, b *binding) error {
	b.suggestMu.Lock()
	defer b.suggestMu.Unlock()
	if b.result != nil {
		return nil
	}

	res, err := w.opts.Gateway.GetResults(ctx, b.jobID)
	if err != nil {
		return fmt.Errorf("fetch results for job %s: %w", b.jobID, err)
	}
	b.result = res
	b.suggestions = suggest.Derive(suggest.FilterLevel(res.Assessment.Risks, w.opts.SuggestionLevel))
	return nil
}

// VideoURL returns a playable link for the open job's source video.
func (w *Workspace) VideoURL(ctx context.Context) (*gateway.VideoURL, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	return w.opts.Gateway.GetVideoURL(ctx, b.jobID)
}

// ApplySuggestion adds an action covering the suggestion's span. A nil
// opts uses the defaults for t.
func (w *Workspace) ApplySuggestion(ctx context.Context, id string, t edit.ActionType, opts edit.Options) (*edit.Session, error) {
	suggestions, err := w.Suggestions(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range suggestions {
		if s.ID == id {
			sess, err := w.Session()
			if err != nil {
				return nil, err
			}
			return sess.AddAction(ctx, suggest.Seed(s, t, opts))
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSuggestionNotFound, id)
}

// ApplyAllSuggestions replaces the action list with one cut per
// suggestion. The previous list is undoable.
func (w *Workspace) ApplyAllSuggestions(ctx context.Context) (*edit.Session, error) {
	suggestions, err := w.Suggestions(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := w.Session()
	if err != nil {
		return nil, err
	}
	return sess.ReplaceActions(ctx, suggest.SeedAll(suggestions))
}

func (w *Workspace) recordSession(s edit.Session, reason session.Reason) {
	if w.opts.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.opts.Journal.RecordSession(ctx, s, string(reason)); err != nil {
			logging.WithJobID(w.logger, s.JobID).Warn("failed to journal session", "reason", string(reason), "error", err)
		}
	}
	w.changed()
}

func (w *Workspace) recordExport(b *binding, st export.State) {
	b.lastExport.mu.Lock()
	changed := st.Status != b.lastExport.status || st.DownloadURL != b.lastExport.download
	b.lastExport.status = st.Status
	b.lastExport.download = st.DownloadURL
	b.lastExport.mu.Unlock()

	if changed && st.Status != export.StatusNone && w.opts.Journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry := &journal.ExportEntry{
			JobID:        st.JobID,
			ExportID:     st.ExportID,
			Status:       string(st.Status),
			Progress:     st.Progress,
			ErrorMessage: st.ErrorMessage,
			DownloadURL:  st.DownloadURL,
		}
		if err := w.opts.Journal.RecordExport(ctx, entry); err != nil {
			logging.WithJobID(w.logger, st.JobID).Warn("failed to journal export", "error", err)
		}
	}
	w.changed()
}

func (w *Workspace) changed() {
	if w.opts.OnChange != nil {
		w.opts.OnChange()
	}
}
