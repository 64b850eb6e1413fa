package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rescuemate/alertsync/internal/bridge"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, cache, and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			rt.app.ReloadFromMemory(ctx)
			state := rt.app.State()

			online := rt.api.Online(ctx)
			daemonUp := rt.bridge.Healthy(ctx)

			if getOutputFormat() == "json" {
				return printJSON(map[string]interface{}{
					"online":        online,
					"daemon":        daemonUp,
					"cachedAlerts":  len(state.Alerts),
					"pendingQueue":  len(state.Queue),
					"serverURL":     viper.GetString("server_url"),
					"daemonURL":     viper.GetString("daemon_url"),
					"storePath":     viper.GetString("store_path"),
				})
			}

			t := NewTable("KEY", "VALUE")
			t.AddRow("online", strconv.FormatBool(online))
			t.AddRow("daemon reachable", strconv.FormatBool(daemonUp))
			t.AddRow("cached alerts", strconv.Itoa(len(state.Alerts)))
			t.AddRow("pending reports", strconv.Itoa(len(state.Queue)))
			t.AddRow("server", viper.GetString("server_url"))
			t.AddRow("daemon", viper.GetString("daemon_url"))
			t.AddRow("store", viper.GetString("store_path"))
			t.Render()
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow background sync completions and print the refreshed feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()

			unsubscribe := rt.app.Subscribe(func() {
				state := rt.app.State()
				fmt.Printf("%d alert(s), %d pending report(s)\n", len(state.Alerts), len(state.Queue))
			})
			defer unsubscribe()

			rt.app.ReloadFromMemory(ctx)

			fmt.Println("watching for sync completions (Ctrl-C to stop)...")
			return rt.bridge.Listen(ctx, func(msg bridge.Message) {
				rt.app.HandleBridgeMessage(ctx, msg)
			})
		},
	}
}
