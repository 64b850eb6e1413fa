package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rescuemate/alertsync/internal/app"
	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/store"
	syncops "github.com/rescuemate/alertsync/internal/sync"
	"github.com/rescuemate/alertsync/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	daemonURL    string
	storePath    string
)

var rootCmd = &cobra.Command{
	Use:   "alertctl",
	Short: "alertctl - offline-capable emergency alert client",
	Long: `alertctl is the foreground client of the alertsync engine. It mirrors the
shared persistent store, queues incident reports while offline, and hands
deferred delivery to the syncd background daemon when one is running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.alertsync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "alert API URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&daemonURL, "daemon", "", "syncd daemon URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "db", "", "persistent store path (overrides config)")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("daemon_url", rootCmd.PersistentFlags().Lookup("daemon"))
	_ = viper.BindPFlag("store_path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPushCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		configDir := home + "/.alertsync"
		_ = os.MkdirAll(configDir, 0700)
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ALERTSYNC")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("daemon_url", "http://localhost:8090")
	viper.SetDefault("store_path", defaultStorePath())
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./alertsync.db"
	}
	return home + "/.alertsync/alertsync.db"
}

// runtime bundles the foreground wiring shared by all commands
type runtime struct {
	store  *store.Store
	api    *client.Client
	ops    *syncops.Operations
	bridge *bridge.Client
	app    *app.Store
	logger *logger.Logger
}

func newRuntime() (*runtime, error) {
	log := logger.New(logger.Config{
		Level:  viper.GetString("log_level"),
		Format: "console",
	})

	persist, err := store.Open(viper.GetString("store_path"))
	if err != nil {
		return nil, err
	}

	api := client.NewClient(client.Config{
		BaseURL:     viper.GetString("server_url"),
		TokenSource: syncops.StoreTokenSource(persist),
	})

	ops := syncops.New(persist, api, log)
	bridgeClient := bridge.NewClient(viper.GetString("daemon_url"), log)

	online := func(ctx context.Context) bool { return api.Online(ctx) }
	reactive := app.NewStore(persist, ops, bridgeClient, online, log)

	return &runtime{
		store:  persist,
		api:    api,
		ops:    ops,
		bridge: bridgeClient,
		app:    reactive,
		logger: log,
	}, nil
}

func (r *runtime) Close() {
	_ = r.store.Close()
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
