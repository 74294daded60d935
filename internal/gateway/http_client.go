package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/suggest"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorBytes    = 4096
)

// HTTPClient calls the gateway's job API over HTTP.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *HTTPClient) GetEditSession(ctx context.Context, jobID string) (*edit.Session, error) {
	var s edit.Session
	if err := c.do(ctx, http.MethodGet, jobPath(jobID, "edit-session"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) ReplaceEditSession(ctx context.Context, jobID string, actions []edit.Action) (*edit.Session, error) {
	var s edit.Session
	body := sessionUpdate{Actions: edit.Inputs(actions)}
	if err := c.do(ctx, http.MethodPut, jobPath(jobID, "edit-session"), body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) StartExport(ctx context.Context, jobID string) (*export.StartResult, error) {
	var res export.StartResult
	if err := c.do(ctx, http.MethodPost, jobPath(jobID, "export"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetExportStatus(ctx context.Context, jobID string) (*export.StatusResult, error) {
	var res export.StatusResult
	if err := c.do(ctx, http.MethodGet, jobPath(jobID, "export/status"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetExportDownload(ctx context.Context, jobID string) (*export.Download, error) {
	var res export.Download
	if err := c.do(ctx, http.MethodGet, jobPath(jobID, "export/download"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetResults(ctx context.Context, jobID string) (*suggest.AnalysisResult, error) {
	var res suggest.AnalysisResult
	if err := c.do(ctx, http.MethodGet, jobPath(jobID, "results"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetVideoURL(ctx context.Context, jobID string) (*VideoURL, error) {
	var res VideoURL
	if err := c.do(ctx, http.MethodGet, jobPath(jobID, "video-url"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func jobPath(jobID, suffix string) string {
	return fmt.Sprintf("/api/jobs/%s/%s", url.PathEscape(jobID), suffix)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", requestID)

	logger := logging.WithRequestID(c.logger, requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("gateway request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
