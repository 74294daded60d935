package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/edl"
)

func newEDLCmd() *cobra.Command {
	var (
		title     string
		frameRate float64
		duration  float64
		output    string
	)

	cmd := &cobra.Command{
		Use:   "edl <job-id>",
		Short: "Print a job's edit session as a CMX3600 EDL",
		Long: `Fetch the job's edit session from the gateway and render the source
ranges that survive its cuts as an edit decision list. Mosaic, telop and
mute actions are listed as comments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cliEnv()
			if err != nil {
				return err
			}
			jobID := args[0]
			if title == "" {
				title = jobID
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GatewayTimeout())
			defer cancel()

			s, err := newGateway(cfg, logger).GetEditSession(ctx, jobID)
			if err != nil {
				return fmt.Errorf("load edit session: %w", err)
			}

			body := edl.Render(s.Actions, edl.Options{Title: title, FrameRate: frameRate, Duration: duration})
			if output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if output == "." {
				output = edl.FileName(title)
			}
			if err := os.WriteFile(output, []byte(body), 0644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✅ Wrote "+output))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "EDL title (defaults to the job id)")
	cmd.Flags().Float64Var(&frameRate, "frame-rate", 30, "Timecode frame rate (29.97 and 59.94 use drop frame)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Source duration in seconds (defaults to the end of the last action)")
	cmd.Flags().StringVarP(&output, "output", "o", "", `Write to a file instead of stdout ("." names it after the title)`)
	return cmd
}
