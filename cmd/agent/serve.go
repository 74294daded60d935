package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/api"
	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/gateway"
	"github.com/heimdex/heimdex-editor/internal/journal"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/ui"
	"github.com/heimdex/heimdex-editor/internal/workspace"
)

func serve(cfg config.Config) error {
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex editor agent", "version", Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := journal.Open(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	store := database.Store()

	authToken, err := ensureAuthToken(store)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	gw := newGateway(cfg, logger)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-56s ║\n", "HEIMDEX EDITOR v"+Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Gateway:    %-45s ║\n", gatewayLabel(cfg))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	changes := make(chan struct{}, 1)
	ws := workspace.New(workspace.Options{
		Gateway:      gw,
		Journal:      store,
		Logger:       logger,
		HistoryLimit: cfg.HistoryLimit(),
		PollInterval: cfg.PollInterval(),
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	defer ws.Close()

	if jobID := initialJob(cfg, store); jobID != "" {
		openCtx, openCancel := context.WithTimeout(context.Background(), cfg.GatewayTimeout())
		if err := ws.Open(openCtx, jobID); err != nil {
			logger.Warn("failed to load edit session on startup", "job_id", jobID, "error", err)
		}
		openCancel()
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Workspace: ws,
		Journal:   store,
		Logger:    logger,
		StartTime: startTime,
		Version:   Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Workspace: ws,
			Logger:    logger,
			Changes:   changes,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newGateway(cfg config.Config, logger *slog.Logger) gateway.Client {
	if cfg.Offline() {
		logger.Info("offline mode, using in-memory gateway")
		return gateway.NewMemoryClient(logger)
	}
	logger.Info("using remote gateway", "base_url", cfg.GatewayURL())
	return gateway.NewHTTPClient(cfg.GatewayURL(), cfg.GatewayToken(), cfg.GatewayTimeout(), logger)
}

func gatewayLabel(cfg config.Config) string {
	if cfg.Offline() {
		return "offline (in-memory)"
	}
	return cfg.GatewayURL()
}

// initialJob picks the job to open at startup: the configured one, else
// the one open when the agent last ran.
func initialJob(cfg config.Config, store journal.Repository) string {
	if id := strings.TrimSpace(cfg.JobID()); id != "" {
		return id
	}
	last, err := store.GetConfig(context.Background(), journal.ConfigLastJobID)
	if err != nil {
		return ""
	}
	return last
}

func ensureAuthToken(store journal.Repository) (string, error) {
	ctx := context.Background()

	existing, err := store.GetConfig(ctx, journal.ConfigAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")

	if err := store.SetConfig(ctx, journal.ConfigAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
