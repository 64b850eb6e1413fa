package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rescuemate/alertsync/internal/assets"
	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/config"
	"github.com/rescuemate/alertsync/internal/notify"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/store"
	syncops "github.com/rescuemate/alertsync/internal/sync"
	"github.com/rescuemate/alertsync/internal/worker"
	"github.com/rescuemate/alertsync/pkg/client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	persist, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer persist.Close()

	api := client.NewClient(client.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		TokenSource: syncops.StoreTokenSource(persist),
	})

	ops := syncops.New(persist, api, log)
	hub := bridge.NewHub(log)
	cache := assets.New(assets.Config{
		Root:    cfg.Assets.Dir,
		Version: cfg.Assets.Version,
		Origin:  cfg.Assets.Origin,
		Paths:   cfg.Assets.Paths,
	}, log)
	notifier := notify.NewLogNotifier(log)

	w := worker.New(ops, cache, hub, notifier, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Lifecycle: install prefills the versioned asset cache, activate
	// removes stale versions left by previous releases.
	if err := w.Handle(ctx, worker.Event{Kind: worker.EventInstall}); err != nil {
		log.ErrorWithErr(err, "install failed")
	}
	if err := w.Handle(ctx, worker.Event{Kind: worker.EventActivate}); err != nil {
		log.ErrorWithErr(err, "activate failed")
	}

	if cfg.Refresh.Enabled {
		sched, err := worker.NewScheduler(ops, hub, cfg.Refresh.Schedule, log)
		if err != nil {
			log.Fatalf("invalid refresh schedule: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	router, err := worker.NewRouter(w, hub, worker.RouterConfig{
		Origin:        cfg.Assets.Origin,
		AllowedOrigin: cfg.Server.FrontendURL,
	}, log)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("syncd listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "graceful shutdown failed")
	}
}
