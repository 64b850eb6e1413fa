// Package worker is the background execution context: a single long-lived
// process that owns the asset cache lifecycle, ingests push payloads,
// replays the write queue on sync triggers, and signals foreground contexts
// when background-driven store changes are ready.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rescuemate/alertsync/internal/assets"
	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/domain/alert"
	"github.com/rescuemate/alertsync/internal/notify"
	apperrors "github.com/rescuemate/alertsync/internal/pkg/errors"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/pkg/metrics"
	syncops "github.com/rescuemate/alertsync/internal/sync"
)

// EventKind identifies a lifecycle or runtime event
type EventKind string

// Lifecycle and runtime events
const (
	EventInstall  EventKind = "install"
	EventActivate EventKind = "activate"
	EventSync     EventKind = "sync"
	EventPush     EventKind = "push"
)

// Event is a dispatchable unit of work. Sync events carry a tag, push
// events carry the raw payload.
type Event struct {
	Kind    EventKind
	Tag     string
	Payload []byte
}

// HandlerFunc handles one event; its return marks the event complete. An
// error propagates to the hosting runtime, whose delivery policy decides
// whether the event is retried. No retry loop lives here.
type HandlerFunc func(ctx context.Context, ev Event) error

// Broadcaster sends completion signals to foreground contexts
type Broadcaster interface {
	Broadcast(msg bridge.Message)
}

// Worker dispatches events through an explicit handler table, constructed
// once per process.
type Worker struct {
	ops      *syncops.Operations
	assets   *assets.Cache
	hub      Broadcaster
	notifier notify.Notifier
	logger   *logger.Logger

	handlers map[EventKind]HandlerFunc
}

// New creates the worker and wires its dispatch table
func New(ops *syncops.Operations, cache *assets.Cache, hub Broadcaster, notifier notify.Notifier, log *logger.Logger) *Worker {
	w := &Worker{
		ops:      ops,
		assets:   cache,
		hub:      hub,
		notifier: notifier,
		logger:   log,
	}
	w.handlers = map[EventKind]HandlerFunc{
		EventInstall:  w.handleInstall,
		EventActivate: w.handleActivate,
		EventSync:     w.handleSync,
		EventPush:     w.handlePush,
	}
	return w
}

// Handle dispatches one event and blocks until its handler completes.
func (w *Worker) Handle(ctx context.Context, ev Event) error {
	h, ok := w.handlers[ev.Kind]
	if !ok {
		return apperrors.BadRequest(fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
	return h(ctx, ev)
}

func (w *Worker) handleInstall(ctx context.Context, _ Event) error {
	w.logger.Info("install event received")
	return w.assets.Prefill(ctx)
}

func (w *Worker) handleActivate(_ context.Context, _ Event) error {
	w.logger.Info("activate event received")
	return w.assets.CleanupStale()
}

func (w *Worker) handleSync(ctx context.Context, ev Event) error {
	w.logger.Infof("syncing in background, %q", ev.Tag)
	if ev.Tag != bridge.SyncTag {
		return nil
	}
	if err := w.ops.SyncPendingReports(ctx); err != nil {
		return err
	}
	w.hub.Broadcast(bridge.Message{Type: bridge.MessageSyncComplete})
	return nil
}

// handlePush persists the pushed alert, refreshes the cache, and shows the
// notification in parallel. The alert is durable even when the refresh
// fails, because persistence does not wait on it.
func (w *Worker) handlePush(ctx context.Context, ev Event) error {
	w.logger.Info("push event received")
	if len(ev.Payload) == 0 {
		metrics.RecordPush("empty")
		return nil
	}

	var a alert.Alert
	if err := json.Unmarshal(ev.Payload, &a); err != nil {
		metrics.RecordPush("malformed")
		return apperrors.BadPayload("failed to parse push payload", err)
	}
	if a.ID == "" {
		// Partial payloads are dropped, not guessed at: the id keys the
		// alerts collection and only the server assigns it.
		metrics.RecordPush("partial")
		w.logger.Warn("dropping push payload without id")
		return nil
	}
	metrics.RecordPush("ok")

	// The three branches run to completion independently; a failed cache
	// refresh must not cancel the durable write.
	var g errgroup.Group
	g.Go(func() error {
		return w.ops.AddNotificationAlert(ctx, a)
	})
	g.Go(func() error {
		_, err := w.ops.FetchAndCacheAlerts(ctx, false)
		return err
	})
	g.Go(func() error {
		return w.notifier.Show(ctx, notify.Notification{
			Tag:   a.ID,
			Title: a.Title,
			Body:  formatTimestamp(a.Timestamp),
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w.hub.Broadcast(bridge.Message{Type: bridge.MessageSyncComplete})
	return nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("Jan 2, 2006 3:04 PM")
}
