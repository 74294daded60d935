package journal

import (
	"time"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

// StatusInterrupted marks an export the agent stopped watching before it
// settled.
const StatusInterrupted = "interrupted"

// Config keys.
const (
	ConfigAuthToken = "auth_token"
	ConfigLastJobID = "last_job_id"
)

// SessionEntry is one committed version of an edit session.
type SessionEntry struct {
	ID          int64         `json:"id"`
	JobID       string        `json:"job_id"`
	SessionID   string        `json:"session_id"`
	Reason      string        `json:"reason"`
	Status      string        `json:"status"`
	ActionCount int           `json:"action_count"`
	Actions     []edit.Action `json:"actions"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// ExportEntry is one observed export state.
type ExportEntry struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	ExportID     string    `json:"export_id,omitempty"`
	Status       string    `json:"status"`
	Progress     float64   `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DownloadURL  string    `json:"download_url,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}
