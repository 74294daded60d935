package api

import (
	"time"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/journal"
	"github.com/heimdex/heimdex-editor/internal/session"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	JobID   string `json:"job_id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type OpenJobRequest struct {
	JobID string `json:"job_id"`
}

type WorkspaceResponse struct {
	JobID   string           `json:"job_id,omitempty"`
	Session *SessionResponse `json:"session,omitempty"`
	Export  *ExportResponse  `json:"export,omitempty"`
}

type SessionResponse struct {
	JobID     string        `json:"job_id"`
	SessionID string        `json:"session_id,omitempty"`
	Status    string        `json:"status,omitempty"`
	Actions   []edit.Action `json:"actions"`
	Loading   bool          `json:"loading"`
	Saving    bool          `json:"saving"`
	CanUndo   bool          `json:"can_undo"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

type ExportResponse struct {
	export.State
	Error string `json:"error,omitempty"`
}

type ReplaceActionsRequest struct {
	Actions []edit.Action `json:"actions"`
}

type SuggestionsResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Graph       []suggest.GraphPoint `json:"graph"`
	RiskLevel   suggest.RiskLevel    `json:"risk_level,omitempty"`
}

type VideoResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type SessionEntriesResponse struct {
	Entries []*journal.SessionEntry `json:"entries"`
}

type ExportEntriesResponse struct {
	Latest  *journal.ExportEntry   `json:"latest,omitempty"`
	Entries []*journal.ExportEntry `json:"entries"`
}

func SessionToResponse(st session.State) SessionResponse {
	resp := SessionResponse{
		JobID:   st.JobID,
		Actions: st.Actions,
		Loading: st.Loading,
		Saving:  st.Saving,
		CanUndo: st.CanUndo,
	}
	if resp.Actions == nil {
		resp.Actions = []edit.Action{}
	}
	if st.Session != nil {
		resp.SessionID = st.Session.ID
		resp.Status = string(st.Session.Status)
		if !st.Session.UpdatedAt.IsZero() {
			resp.UpdatedAt = st.Session.UpdatedAt.Format(time.RFC3339)
		}
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

func ExportToResponse(st export.State) ExportResponse {
	resp := ExportResponse{State: st}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}
