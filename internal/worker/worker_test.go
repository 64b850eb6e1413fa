package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rescuemate/alertsync/internal/assets"
	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/domain/alert"
	apperrors "github.com/rescuemate/alertsync/internal/pkg/errors"
	syncops "github.com/rescuemate/alertsync/internal/sync"
	"github.com/rescuemate/alertsync/internal/testutil"
	"github.com/rescuemate/alertsync/pkg/client"
)

type workerEnv struct {
	worker   *Worker
	api      *testutil.FakeAPI
	ops      *syncops.Operations
	hub      *testutil.FakeBroadcaster
	notifier *testutil.FakeNotifier
	alerts   func() []alert.Alert
	enqueue  func(alert.QueueItem)
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	api := testutil.NewFakeAPI(t)
	s := testutil.NewTestStore(t)
	c := client.NewClient(client.Config{BaseURL: api.URL()})
	log := testutil.NewTestLogger()
	ops := syncops.New(s, c, log)

	cache := assets.New(assets.Config{
		Root:    t.TempDir(),
		Version: "test",
		Origin:  api.URL(),
	}, log)

	hub := &testutil.FakeBroadcaster{}
	notifier := testutil.NewFakeNotifier()

	ctx := context.Background()
	return &workerEnv{
		worker:   New(ops, cache, hub, notifier, log),
		api:      api,
		ops:      ops,
		hub:      hub,
		notifier: notifier,
		alerts: func() []alert.Alert {
			alerts, err := s.AllAlerts(ctx)
			if err != nil {
				t.Fatalf("AllAlerts() error = %v", err)
			}
			return alerts
		},
		enqueue: func(item alert.QueueItem) {
			if err := s.Enqueue(ctx, item); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
		},
	}
}

func pushPayload(t *testing.T, a alert.Alert) []byte {
	t.Helper()
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal push payload: %v", err)
	}
	return b
}

func TestHandleUnknownEventKind(t *testing.T) {
	e := newWorkerEnv(t)

	err := e.worker.Handle(context.Background(), Event{Kind: "periodicsync"})
	if err == nil {
		t.Fatal("Handle() unknown kind succeeded, want error")
	}
}

func TestHandleSyncReplaysAndBroadcasts(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	e.enqueue(alert.QueueItem{ID: "q-1", Data: alert.Payload{Title: "Flood Warning", Severity: "warning"}})

	err := e.worker.Handle(ctx, Event{Kind: EventSync, Tag: bridge.SyncTag})
	if err != nil {
		t.Fatalf("Handle(sync) error = %v", err)
	}

	if got := e.api.CreateCount(); got != 1 {
		t.Errorf("create requests = %d, want 1", got)
	}
	msgs := e.hub.Messages()
	if len(msgs) != 1 || msgs[0].Type != bridge.MessageSyncComplete {
		t.Errorf("broadcasts = %v, want one sync-complete", msgs)
	}
}

func TestHandleSyncIgnoresUnknownTag(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	e.enqueue(alert.QueueItem{ID: "q-1", Data: alert.Payload{Title: "Flood Warning", Severity: "warning"}})

	err := e.worker.Handle(ctx, Event{Kind: EventSync, Tag: "some-other-tag"})
	if err != nil {
		t.Fatalf("Handle(sync, unknown tag) error = %v", err)
	}
	if got := e.api.CreateCount(); got != 0 {
		t.Errorf("create requests = %d, want 0 (unknown tag is a no-op)", got)
	}
	if got := len(e.hub.Messages()); got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
}

func TestHandleSyncFailurePropagatesWithoutBroadcast(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	e.api.FailCreatesTitled("Flood Warning")
	e.enqueue(alert.QueueItem{ID: "q-1", Data: alert.Payload{Title: "Flood Warning", Severity: "warning"}})

	err := e.worker.Handle(ctx, Event{Kind: EventSync, Tag: bridge.SyncTag})
	if err == nil {
		t.Fatal("Handle(sync) succeeded, want replay error for runtime redelivery")
	}
	if got := len(e.hub.Messages()); got != 0 {
		t.Errorf("broadcasts after failed replay = %d, want 0", got)
	}
}

func TestHandlePushPersistsNotifiesBroadcasts(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	a := alert.Alert{ID: "a0042", Title: "Bushfire", Severity: "critical", Timestamp: "2024-01-05T10:00:00Z"}
	err := e.worker.Handle(ctx, Event{Kind: EventPush, Payload: pushPayload(t, a)})
	if err != nil {
		t.Fatalf("Handle(push) error = %v", err)
	}

	cached := e.alerts()
	found := false
	for _, got := range cached {
		if got.ID == "a0042" && got.Title == "Bushfire" {
			found = true
		}
	}
	if !found {
		t.Errorf("pushed alert not in store: %+v", cached)
	}

	n, ok := e.notifier.Shown("a0042")
	if !ok {
		t.Fatal("notification not shown")
	}
	if n.Title != "Bushfire" {
		t.Errorf("notification title = %q, want Bushfire", n.Title)
	}

	msgs := e.hub.Messages()
	if len(msgs) != 1 || msgs[0].Type != bridge.MessageSyncComplete {
		t.Errorf("broadcasts = %v, want one sync-complete", msgs)
	}
}

func TestHandlePushEmptyPayloadDropped(t *testing.T) {
	e := newWorkerEnv(t)

	err := e.worker.Handle(context.Background(), Event{Kind: EventPush})
	if err != nil {
		t.Fatalf("Handle(push, empty) error = %v, want nil", err)
	}
	if got := e.notifier.Count(); got != 0 {
		t.Errorf("notifications shown = %d, want 0", got)
	}
	if got := len(e.hub.Messages()); got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
}

func TestHandlePushMissingIDDropped(t *testing.T) {
	e := newWorkerEnv(t)

	payload := []byte(`{"title":"Heatwave","severity":"critical"}`)
	err := e.worker.Handle(context.Background(), Event{Kind: EventPush, Payload: payload})
	if err != nil {
		t.Fatalf("Handle(push, id-less) error = %v, want nil (dropped)", err)
	}

	if cached := e.alerts(); len(cached) != 0 {
		t.Errorf("id-less payload persisted: %+v", cached)
	}
	if got := e.notifier.Count(); got != 0 {
		t.Errorf("notifications shown = %d, want 0", got)
	}
	if got := len(e.hub.Messages()); got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
}

func TestHandlePushMalformedPayload(t *testing.T) {
	e := newWorkerEnv(t)

	err := e.worker.Handle(context.Background(), Event{Kind: EventPush, Payload: []byte("{not json")})
	if err == nil {
		t.Fatal("Handle(push, malformed) succeeded, want error")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrCodeBadPayload {
		t.Errorf("Handle(push, malformed) error = %v, want BAD_PAYLOAD", err)
	}
}

func TestHandlePushDurableWhenRefreshFails(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	// Take the API down: the refresh branch fails, the event errors, but
	// the pushed alert must already be durable.
	e.api.Server.Close()

	a := alert.Alert{ID: "a0042", Title: "Bushfire", Severity: "critical", Timestamp: "2024-01-05T10:00:00Z"}
	err := e.worker.Handle(ctx, Event{Kind: EventPush, Payload: pushPayload(t, a)})
	if err == nil {
		t.Fatal("Handle(push) succeeded with API down, want error")
	}

	cached := e.alerts()
	if len(cached) != 1 || cached[0].ID != "a0042" {
		t.Errorf("pushed alert not durable after failed refresh: %+v", cached)
	}
	if got := len(e.hub.Messages()); got != 0 {
		t.Errorf("broadcasts after incomplete push = %d, want 0", got)
	}
}

func TestHandlePushSameTagReplacesNotification(t *testing.T) {
	e := newWorkerEnv(t)
	ctx := context.Background()

	first := alert.Alert{ID: "a0042", Title: "Bushfire", Severity: "critical", Timestamp: "2024-01-05T10:00:00Z"}
	second := alert.Alert{ID: "a0042", Title: "Bushfire Contained", Severity: "info", Timestamp: "2024-01-05T12:00:00Z"}

	for _, a := range []alert.Alert{first, second} {
		if err := e.worker.Handle(ctx, Event{Kind: EventPush, Payload: pushPayload(t, a)}); err != nil {
			t.Fatalf("Handle(push) error = %v", err)
		}
	}

	if got := e.notifier.Count(); got != 1 {
		t.Errorf("distinct notification tags = %d, want 1 (same tag replaces)", got)
	}
	n, _ := e.notifier.Shown("a0042")
	if n.Title != "Bushfire Contained" {
		t.Errorf("notification title = %q, want the replacement", n.Title)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		raw  bool
	}{
		{name: "valid RFC3339", in: "2024-01-05T10:30:00Z", raw: false},
		{name: "unparseable passes through", in: "not-a-time", raw: true},
		{name: "empty passes through", in: "", raw: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTimestamp(tt.in)
			if tt.raw && got != tt.in {
				t.Errorf("formatTimestamp(%q) = %q, want passthrough", tt.in, got)
			}
			if !tt.raw && got == tt.in {
				t.Errorf("formatTimestamp(%q) not formatted", tt.in)
			}
		})
	}
}
