package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

func suggestionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		suggestions, err := cfg.Workspace.Suggestions(ctx)
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		res, err := cfg.Workspace.Results(ctx)
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}

		if suggestions == nil {
			suggestions = []suggest.Suggestion{}
		}
		WriteJSON(w, http.StatusOK, SuggestionsResponse{
			Suggestions: suggestions,
			Graph:       suggest.Graph(res.Assessment.Risks),
			RiskLevel:   res.Assessment.RiskLevel,
		})
	}
}

// applySuggestionHandler accepts an optional {"type", "options"} body.
// Without one the suggestion becomes a cut.
func applySuggestionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := edit.Action{Type: edit.ActionCut}
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Type == "" {
			req.Type = edit.ActionCut
		}

		if _, err := cfg.Workspace.ApplySuggestion(r.Context(), chi.URLParam(r, "id"), req.Type, req.Options); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		writeSessionState(w, cfg, http.StatusCreated)
	}
}

func applyAllSuggestionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := cfg.Workspace.ApplyAllSuggestions(r.Context()); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		writeSessionState(w, cfg, http.StatusOK)
	}
}

func writeSessionState(w http.ResponseWriter, cfg ServerConfig, status int) {
	sess, err := cfg.Workspace.Session()
	if err != nil {
		writeDomainError(w, cfg.Logger, err)
		return
	}
	WriteJSON(w, status, SessionToResponse(sess.State()))
}
