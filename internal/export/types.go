package export

import (
	"context"
	"errors"
	"fmt"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further progress is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether an export is queued or rendering.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Gateway is the remote service that renders exports.
type Gateway interface {
	StartExport(ctx context.Context, jobID string) (*StartResult, error)
	GetExportStatus(ctx context.Context, jobID string) (*StatusResult, error)
	GetExportDownload(ctx context.Context, jobID string) (*Download, error)
}

type StartResult struct {
	ExportID string `json:"export_id"`
	Status   Status `json:"status"`
}

type StatusResult struct {
	ExportID     *string `json:"export_id"`
	Status       Status  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage *string `json:"error_message"`
}

type Download struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

// State is a point-in-time copy of an export coordinator's observable state.
type State struct {
	JobID        string  `json:"job_id"`
	ExportID     string  `json:"export_id,omitempty"`
	Status       Status  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage string  `json:"error_message,omitempty"`
	DownloadURL  string  `json:"download_url,omitempty"`
	ExpiresAt    string  `json:"download_expires_at,omitempty"`
	Polling      bool    `json:"polling"`
	Err          error   `json:"-"`
}

// ErrClosed is returned by a coordinator that has been torn down.
var ErrClosed = errors.New("export: coordinator closed")

type StartError struct {
	JobID string
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start export for job %s: %v", e.JobID, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

type PollError struct {
	JobID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll export status for job %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

type DownloadError struct {
	JobID string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fetch export download for job %s: %v", e.JobID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// isNotFound reports whether err is the gateway saying no export exists.
func isNotFound(err error) bool {
	var nf interface{ IsNotFound() bool }
	return errors.As(err, &nf) && nf.IsNotFound()
}

// userMessage extracts a human-readable reason from err.
func userMessage(err error) string {
	var d interface{ Detail() string }
	if errors.As(err, &d) && d.Detail() != "" {
		return d.Detail()
	}
	return err.Error()
}
