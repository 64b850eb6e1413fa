package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescuemate/alertsync/internal/domain/alert"
)

func newReportCmd() *cobra.Command {
	var title, severity string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit an incident report",
		Long: `Submit an incident report. The report is queued durably first; delivery
happens via the background daemon when reachable, or in the foreground
otherwise. Offline, the report stays queued until the next sync trigger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			payload := alert.Payload{Title: title, Severity: severity}
			if err := rt.app.AddAlert(ctx, payload); err != nil {
				return fmt.Errorf("failed to submit report: %w", err)
			}

			state := rt.app.State()
			if len(state.Queue) > 0 {
				fmt.Printf("Report queued (%d pending delivery).\n", len(state.Queue))
			} else {
				fmt.Println("Report delivered.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "report title (required)")
	cmd.Flags().StringVarP(&severity, "severity", "s", alert.SeverityWarning, "severity: critical, warning, info")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
