package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/journal"
	"github.com/heimdex/heimdex-editor/internal/workspace"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackOnly())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Journal, cfg.Logger))

		r.Get("/workspace", workspaceHandler(cfg))
		r.Post("/workspace/open", openJobHandler(cfg))
		r.Post("/workspace/close", closeJobHandler(cfg))

		r.Get("/session", getSessionHandler(cfg))
		r.Post("/session/reload", reloadSessionHandler(cfg))
		r.Post("/session/actions", addActionHandler(cfg))
		r.Put("/session/actions", replaceActionsHandler(cfg))
		r.Put("/session/actions/{id}", updateActionHandler(cfg))
		r.Delete("/session/actions/{id}", removeActionHandler(cfg))
		r.Post("/session/save", saveSessionHandler(cfg))
		r.Post("/session/undo", undoHandler(cfg))
		r.Get("/session/edl", edlHandler(cfg))

		r.Get("/suggestions", suggestionsHandler(cfg))
		r.Post("/suggestions/apply-all", applyAllSuggestionsHandler(cfg))
		r.Post("/suggestions/{id}/apply", applySuggestionHandler(cfg))

		r.Get("/video", videoHandler(cfg))

		r.Get("/export", getExportHandler(cfg))
		r.Post("/export", startExportHandler(cfg))
		r.Post("/export/retry", retryExportHandler(cfg))
		r.Post("/export/refresh", refreshExportHandler(cfg))

		r.Get("/journal/sessions", sessionJournalHandler(cfg))
		r.Get("/journal/exports", exportJournalHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		resp := HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Workspace != nil {
			resp.JobID = cfg.Workspace.JobID()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func workspaceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, workspaceResponse(cfg.Workspace))
	}
}

func openJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		req.JobID = strings.TrimSpace(req.JobID)
		if req.JobID == "" {
			WriteError(w, http.StatusBadRequest, "job_id is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Workspace.Open(r.Context(), req.JobID); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, workspaceResponse(cfg.Workspace))
	}
}

func closeJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Workspace.Close()
		WriteJSON(w, http.StatusOK, workspaceResponse(cfg.Workspace))
	}
}

func workspaceResponse(ws *workspace.Workspace) WorkspaceResponse {
	var resp WorkspaceResponse
	sess, err := ws.Session()
	if err != nil {
		return resp
	}
	resp.JobID = sess.JobID()
	s := SessionToResponse(sess.State())
	resp.Session = &s
	if exp, err := ws.Export(); err == nil {
		e := ExportToResponse(exp.State())
		resp.Export = &e
	}
	return resp
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Workspace.VideoURL(r.Context())
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoResponse{URL: v.URL, ExpiresAt: v.ExpiresAt})
	}
}

func sessionJournalHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := journalJobID(w, r, cfg)
		if !ok {
			return
		}
		entries, err := cfg.Journal.ListSessionEntries(r.Context(), jobID, queryInt(r, "limit"))
		if err != nil {
			cfg.Logger.Error("failed to list session journal", "job_id", jobID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read journal", "INTERNAL_ERROR")
			return
		}
		if entries == nil {
			entries = []*journal.SessionEntry{}
		}
		WriteJSON(w, http.StatusOK, SessionEntriesResponse{Entries: entries})
	}
}

func exportJournalHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := journalJobID(w, r, cfg)
		if !ok {
			return
		}
		ctx := r.Context()
		latest, err := cfg.Journal.GetExport(ctx, jobID)
		if err != nil {
			cfg.Logger.Error("failed to read latest export", "job_id", jobID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read journal", "INTERNAL_ERROR")
			return
		}
		entries, err := cfg.Journal.ListExportEntries(ctx, jobID, queryInt(r, "limit"))
		if err != nil {
			cfg.Logger.Error("failed to list export journal", "job_id", jobID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read journal", "INTERNAL_ERROR")
			return
		}
		if entries == nil {
			entries = []*journal.ExportEntry{}
		}
		WriteJSON(w, http.StatusOK, ExportEntriesResponse{Latest: latest, Entries: entries})
	}
}

// journalJobID resolves the job a journal query is about: the job_id
// query parameter, else the open job.
func journalJobID(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (string, bool) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		jobID = cfg.Workspace.JobID()
	}
	if jobID == "" {
		WriteError(w, http.StatusConflict, "no job is open", "NO_JOB")
		return "", false
	}
	return jobID, true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func queryFloat(r *http.Request, key string) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
