package api

import (
	"net/http"

	"github.com/heimdex/heimdex-editor/internal/export"
)

func exportOp(cfg ServerConfig, status int, run func(r *http.Request, exp *export.Coordinator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exp, err := cfg.Workspace.Export()
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		if err := run(r, exp); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, status, ExportToResponse(exp.State()))
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return exportOp(cfg, http.StatusOK, func(r *http.Request, exp *export.Coordinator) error {
		return nil
	})
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return exportOp(cfg, http.StatusAccepted, func(r *http.Request, exp *export.Coordinator) error {
		return exp.Start(r.Context())
	})
}

func retryExportHandler(cfg ServerConfig) http.HandlerFunc {
	return exportOp(cfg, http.StatusAccepted, func(r *http.Request, exp *export.Coordinator) error {
		return exp.Retry(r.Context())
	})
}

// refreshExportHandler polls once. Poll failures are reported in the
// returned state rather than as an error status.
func refreshExportHandler(cfg ServerConfig) http.HandlerFunc {
	return exportOp(cfg, http.StatusOK, func(r *http.Request, exp *export.Coordinator) error {
		exp.Refresh(r.Context())
		return nil
	})
}
