package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rescuemate/alertsync/pkg/client"
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Manage push subscriptions",
	}

	cmd.AddCommand(newPushRegisterCmd())
	return cmd
}

func newPushRegisterCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a push subscription with the server",
		Long: `Register a push subscription with the server. The subscription JSON is
produced by the hosting platform's key exchange and passed through here
unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read subscription file: %w", err)
			}

			var sub client.PushSubscription
			if err := json.Unmarshal(data, &sub); err != nil {
				return fmt.Errorf("invalid subscription JSON: %w", err)
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.api.RegisterPushSubscription(context.Background(), sub)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Printf("Registered subscription %s.\n", resp.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the subscription JSON (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
