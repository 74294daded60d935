package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/edl"
	"github.com/heimdex/heimdex-editor/internal/session"
)

// sessionOp runs one coordinator operation for a handler and writes the
// resulting state, or the mapped error.
func sessionOp(cfg ServerConfig, status int, run func(r *http.Request, sess *session.Coordinator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Workspace.Session()
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		if err := run(r, sess); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, status, SessionToResponse(sess.State()))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		return nil
	})
}

func reloadSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		_, err := sess.Load(r.Context())
		return err
	})
}

func addActionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusCreated, func(r *http.Request, sess *session.Coordinator) error {
		var a edit.Action
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			return badRequest(err)
		}
		_, err := sess.AddAction(r.Context(), a)
		return err
	})
}

func updateActionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		var a edit.Action
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			return badRequest(err)
		}
		a.ID = chi.URLParam(r, "id")
		_, err := sess.UpdateAction(r.Context(), a)
		return err
	})
}

func removeActionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		_, err := sess.RemoveAction(r.Context(), chi.URLParam(r, "id"))
		return err
	})
}

func replaceActionsHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		var req ReplaceActionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return badRequest(err)
		}
		_, err := sess.ReplaceActions(r.Context(), req.Actions)
		return err
	})
}

func saveSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		_, err := sess.Save(r.Context())
		return err
	})
}

// undoHandler answers with the current state whether or not there was
// anything to undo.
func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return sessionOp(cfg, http.StatusOK, func(r *http.Request, sess *session.Coordinator) error {
		_, err := sess.Undo(r.Context())
		return err
	})
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Workspace.Session()
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}

		frameRate, err := queryFloat(r, "frame_rate")
		if err != nil || frameRate < 0 {
			WriteError(w, http.StatusBadRequest, "invalid frame_rate", "BAD_REQUEST")
			return
		}
		duration, err := queryFloat(r, "duration")
		if err != nil || duration < 0 {
			WriteError(w, http.StatusBadRequest, "invalid duration", "BAD_REQUEST")
			return
		}
		title := r.URL.Query().Get("title")
		if title == "" {
			title = sess.JobID()
		}

		st := sess.State()
		body := edl.Render(st.Actions, edl.Options{Title: title, FrameRate: frameRate, Duration: duration})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", edl.FileName(title)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
