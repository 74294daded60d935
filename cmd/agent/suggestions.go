package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/suggest"
)

func newSuggestionsCmd() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "suggestions <job-id>",
		Short: "List the edit suggestions derived from a job's risk analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl := suggest.RiskLevel(level)
			switch lvl {
			case suggest.LevelHigh, suggest.LevelMedium, suggest.LevelLow, suggest.LevelNone:
			default:
				return fmt.Errorf("unknown risk level %q", level)
			}

			cfg, logger, err := cliEnv()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GatewayTimeout())
			defer cancel()

			res, err := newGateway(cfg, logger).GetResults(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch results: %w", err)
			}

			printSuggestions(cmd.OutOrStdout(), suggest.Derive(suggest.FilterLevel(res.Assessment.Risks, lvl)))
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", string(suggest.LevelHigh), "Risk level to list (high, medium, low, none)")
	return cmd
}

func printSuggestions(w io.Writer, ss []suggest.Suggestion) {
	if len(ss) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No suggestions."))
		return
	}
	for _, s := range ss {
		score := riskStyle(s.RiskLevel).Render(fmt.Sprintf("%3d", s.RiskLevel))
		fmt.Fprintf(w, "%s  %8.2fs - %8.2fs  %s  %s\n", score, s.StartTime, s.EndTime, s.ID, s.Reason)
	}
}

func riskStyle(score int) lipgloss.Style {
	switch {
	case score >= 70:
		return errorStyle
	case score >= 40:
		return warningStyle
	default:
		return infoStyle
	}
}
