package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/heimdex/heimdex-editor/internal/edit"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/gateway"
	"github.com/heimdex/heimdex-editor/internal/session"
	"github.com/heimdex/heimdex-editor/internal/workspace"
)

type requestError struct{ err error }

func (e *requestError) Error() string { return fmt.Sprintf("invalid request body: %v", e.err) }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }

// writeDomainError maps errors from the workspace and its coordinators to
// an HTTP status and error code.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		reqErr     *requestError
		notFound   *session.ActionNotFoundError
		loadErr    *session.LoadError
		saveErr    *session.SaveError
		startErr   *export.StartError
		gatewayErr *gateway.StatusError
	)

	switch {
	case errors.As(err, &reqErr):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, edit.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.As(err, &notFound):
		WriteError(w, http.StatusNotFound, err.Error(), "ACTION_NOT_FOUND")
	case errors.Is(err, workspace.ErrSuggestionNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "SUGGESTION_NOT_FOUND")
	case errors.Is(err, workspace.ErrNoJob):
		WriteError(w, http.StatusConflict, "no job is open", "NO_JOB")
	case errors.Is(err, session.ErrConcurrentWrite):
		WriteError(w, http.StatusConflict, err.Error(), "CONCURRENT_WRITE")
	case errors.Is(err, session.ErrClosed), errors.Is(err, export.ErrClosed):
		WriteError(w, http.StatusConflict, "the open job changed", "JOB_CHANGED")
	case gateway.IsNotFound(err):
		WriteError(w, http.StatusNotFound, gatewayMessage(err), "NOT_FOUND")
	case errors.As(err, &loadErr), errors.As(err, &saveErr), errors.As(err, &startErr), errors.As(err, &gatewayErr):
		logger.Warn("gateway request failed", "error", err)
		WriteError(w, http.StatusBadGateway, gatewayMessage(err), "GATEWAY_ERROR")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "gateway timed out", "GATEWAY_TIMEOUT")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		WriteError(w, http.StatusServiceUnavailable, "request cancelled", "CANCELLED")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

// gatewayMessage prefers the gateway's own detail over the wrapped chain.
func gatewayMessage(err error) string {
	var se *gateway.StatusError
	if errors.As(err, &se) {
		if d := se.Detail(); d != "" {
			return d
		}
	}
	return err.Error()
}
