package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay the pending report queue",
		Long: `Replay the pending report queue. Prefers a background-sync registration
with the syncd daemon; when the daemon is unreachable the queue is replayed
in the foreground instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			rt.app.RequestBackgroundSync(ctx)

			state := rt.app.State()
			if state.Err != nil {
				return fmt.Errorf("sync incomplete: %w", state.Err)
			}
			fmt.Printf("%d report(s) still pending.\n", len(state.Queue))
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the local alert cache from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			if force {
				// Recovery path: wipe the cache, then fetch the full
				// collection non-incrementally.
				rt.app.ForceRefresh(ctx)
			} else {
				rt.app.FetchAlerts(ctx)
			}

			state := rt.app.State()
			if state.Err != nil {
				return fmt.Errorf("refresh failed, cache unchanged: %w", state.Err)
			}
			fmt.Printf("%d alert(s) cached.\n", len(state.Alerts))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "clear the cache and refetch everything")
	return cmd
}
