package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newAlertsCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			if cached {
				rt.app.ReloadFromMemory(ctx)
			} else {
				// Remote failures are absorbed; the cached state is shown.
				rt.app.FetchAlerts(ctx)
			}

			state := rt.app.State()
			if getOutputFormat() == "json" {
				return printJSON(state.Alerts)
			}

			t := NewTable("ID", "SEVERITY", "TITLE", "TIMESTAMP")
			for _, a := range state.Alerts {
				t.AddRow(a.ID, a.Severity, a.Title, a.Timestamp)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "serve from the local store without a remote refresh")
	return cmd
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List pending (unconfirmed) incident reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			rt.app.ReloadFromMemory(ctx)
			state := rt.app.State()

			if getOutputFormat() == "json" {
				return printJSON(state.Queue)
			}

			t := NewTable("QUEUE ID", "SEVERITY", "TITLE")
			for _, item := range state.Queue {
				t.AddRow(item.ID, item.Data.Severity, item.Data.Title)
			}
			t.Render()
			return nil
		},
	}
}
