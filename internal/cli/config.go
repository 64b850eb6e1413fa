package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	syncops "github.com/rescuemate/alertsync/internal/sync"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored configuration",
	}

	cmd.AddCommand(newConfigSetTokenCmd())
	cmd.AddCommand(newConfigUnsetTokenCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <token>",
		Short: "Store the API bearer token in the configuration collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := syncops.SetToken(context.Background(), rt.store, args[0]); err != nil {
				return err
			}
			fmt.Println("Token stored.")
			return nil
		},
	}
}

func newConfigUnsetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset-token",
		Short: "Remove the stored API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := syncops.RemoveToken(context.Background(), rt.store); err != nil {
				return err
			}
			fmt.Println("Token removed.")
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether a token is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			_, ok, err := rt.store.GetConfig(context.Background(), syncops.TokenKey)
			if err != nil {
				return err
			}
			if ok {
				fmt.Println("Token: set")
			} else {
				fmt.Println("Token: not set")
			}
			return nil
		},
	}
}
