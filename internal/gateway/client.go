// Package gateway talks to the analysis service that owns jobs, edit
// sessions, and exports.
package gateway

import (
	"context"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/session"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

type Client interface {
	session.Gateway
	export.Gateway
	GetResults(ctx context.Context, jobID string) (*suggest.AnalysisResult, error)
	GetVideoURL(ctx context.Context, jobID string) (*VideoURL, error)
}

// VideoURL is a short-lived signed link to the job's source video.
type VideoURL struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MemoryClient)(nil)
)

type sessionUpdate struct {
	Actions []edit.Action `json:"actions"`
}
