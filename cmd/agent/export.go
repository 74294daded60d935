package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Start a server-side export of a job's edited video",
		Long: `Start an export and, with --wait, poll its status until it completes or
fails, then print the download link.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cliEnv()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if wait && timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			settled := make(chan export.State, 1)
			coord := export.NewCoordinator(args[0], newGateway(cfg, logger), export.Options{
				PollInterval: cfg.PollInterval(),
				Logger:       logger,
				OnChange: func(st export.State) {
					if st.Status.Active() {
						fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("%s %3.0f%%", st.Status, st.Progress)))
					}
					if exportSettled(st) {
						select {
						case settled <- st:
						default:
						}
					}
				},
			})
			defer coord.Close()

			if err := coord.Start(ctx); err != nil {
				return err
			}
			if !wait {
				fmt.Fprintln(out, successStyle.Render("✅ Export started: "+coord.State().ExportID))
				return nil
			}

			select {
			case st := <-settled:
				return reportExport(out, st)
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("export did not finish within %s", timeout)
				}
				return ctx.Err()
			}
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the export completes or fails")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up waiting after this long")
	return cmd
}

// exportSettled reports whether st is final for the command: failed, or
// completed with the download link fetched or its fetch failed.
func exportSettled(st export.State) bool {
	switch st.Status {
	case export.StatusFailed:
		return true
	case export.StatusCompleted:
		var dlErr *export.DownloadError
		return st.DownloadURL != "" || errors.As(st.Err, &dlErr)
	default:
		return false
	}
}

func reportExport(w io.Writer, st export.State) error {
	if st.Status == export.StatusFailed {
		fmt.Fprintln(w, errorStyle.Render("❌ Export failed: "+st.ErrorMessage))
		return fmt.Errorf("export %s failed: %s", st.ExportID, st.ErrorMessage)
	}
	if st.DownloadURL == "" {
		fmt.Fprintln(w, warningStyle.Render("⚠ Export completed but the download link is unavailable"))
		return st.Err
	}
	fmt.Fprintln(w, successStyle.Render("✅ Export completed"))
	fmt.Fprintln(w, st.DownloadURL)
	if st.ExpiresAt != "" {
		fmt.Fprintln(w, infoStyle.Render("expires "+st.ExpiresAt))
	}
	return nil
}
