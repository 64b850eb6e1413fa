// Package sync implements the stateless reconciliation operations between
// the persistent store and the remote alert API. Both the background daemon
// and the foreground process invoke the same operations; neither duplicates
// the reconciliation logic.
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rescuemate/alertsync/internal/domain/alert"
	apperrors "github.com/rescuemate/alertsync/internal/pkg/errors"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/pkg/metrics"
	"github.com/rescuemate/alertsync/internal/store"
	"github.com/rescuemate/alertsync/pkg/client"
)

// Operations bundles the store and API client behind the three
// reconciliation entry points.
type Operations struct {
	store  *store.Store
	api    *client.Client
	logger *logger.Logger

	// Collapses concurrent replay requests (background sync plus a manual
	// reconnect) into one in-flight POST sequence per item.
	flight singleflight.Group
}

// New creates the sync operations over a store and API client
func New(s *store.Store, api *client.Client, log *logger.Logger) *Operations {
	return &Operations{store: s, api: api, logger: log}
}

// FetchAndCacheAlerts reconciles the local alert cache with the server.
// Without force it fetches incrementally, asking only for alerts after the
// highest locally cached id. Results are merged by idempotent upsert, so
// overlapping fetches never duplicate an alert. It returns the full merged
// local sequence. On network failure the cache is left untouched and the
// caller falls back to it; no retry is attempted here.
func (o *Operations) FetchAndCacheAlerts(ctx context.Context, force bool) ([]alert.Alert, error) {
	cached, err := o.store.AllAlerts(ctx)
	if err != nil {
		return nil, err
	}

	afterID := ""
	mode := "full"
	if last := alert.MaxID(cached); last != "" && !force {
		afterID = last
		mode = "incremental"
	}

	start := time.Now()
	fetched, err := o.api.ListAlerts(ctx, afterID)
	metrics.RecordFetch(mode, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := o.store.PutAlerts(ctx, fetched); err != nil {
		return nil, err
	}

	o.logger.WithFields(map[string]interface{}{
		"mode":    mode,
		"fetched": len(fetched),
	}).Debug("merged remote alerts into local cache")

	return o.store.AllAlerts(ctx)
}

// SyncPendingReports replays the write queue strictly in insertion order,
// one POST at a time. An item is removed only after the server confirms it;
// the first failure stops the replay and leaves the failing item and
// everything after it queued for a future trigger. Items confirmed before
// the failure point are never replayed again. Concurrent invocations share
// a single in-flight replay.
func (o *Operations) SyncPendingReports(ctx context.Context) error {
	_, err, _ := o.flight.Do("sync-messages", func() (interface{}, error) {
		return nil, o.replayQueue(ctx)
	})
	return err
}

func (o *Operations) replayQueue(ctx context.Context) error {
	queue, err := o.store.Queue(ctx)
	if err != nil {
		return err
	}
	metrics.SetQueueDepth(len(queue))

	for _, item := range queue {
		if _, err := o.api.CreateAlert(ctx, item.Data); err != nil {
			metrics.RecordReplayFailure()
			return apperrors.SyncFailed(fmt.Sprintf("failed to replay report %s", item.ID), err)
		}
		if err := o.store.Dequeue(ctx, item.ID); err != nil {
			return err
		}
		metrics.RecordReplayed()
		o.logger.With("queue_id", item.ID).Debug("report confirmed by server")
	}

	remaining, err := o.store.Queue(ctx)
	if err == nil {
		metrics.SetQueueDepth(len(remaining))
	}
	return nil
}

// AddNotificationAlert durably upserts a single push-delivered alert,
// independent of any fetch. A push payload survives even if no sync
// follows.
func (o *Operations) AddNotificationAlert(ctx context.Context, a alert.Alert) error {
	o.logger.With("alert_id", a.ID).Info("adding push-delivered alert to local storage")
	return o.store.PutAlert(ctx, a)
}
