package sync

import (
	"context"
	"testing"

	"github.com/rescuemate/alertsync/internal/domain/alert"
	"github.com/rescuemate/alertsync/internal/testutil"
	"github.com/rescuemate/alertsync/pkg/client"
)

func newOperations(t *testing.T) (*Operations, *testutil.FakeAPI) {
	t.Helper()

	api := testutil.NewFakeAPI(t)
	s := testutil.NewTestStore(t)
	c := client.NewClient(client.Config{BaseURL: api.URL()})
	return New(s, c, testutil.NewTestLogger()), api
}

func TestFetchAndCacheAlertsFullThenIncremental(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	api.Seed(
		alert.Alert{ID: "a0001", Title: "Flood Warning", Severity: "warning", Timestamp: "2024-01-01T10:00:00Z"},
		alert.Alert{ID: "a0002", Title: "Heatwave", Severity: "critical", Timestamp: "2024-01-02T10:00:00Z"},
	)

	alerts, err := ops.FetchAndCacheAlerts(ctx, false)
	if err != nil {
		t.Fatalf("FetchAndCacheAlerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("first fetch returned %d alerts, want 2", len(alerts))
	}

	api.Seed(alert.Alert{ID: "a0003", Title: "Bushfire", Severity: "critical", Timestamp: "2024-01-03T10:00:00Z"})

	alerts, err = ops.FetchAndCacheAlerts(ctx, false)
	if err != nil {
		t.Fatalf("FetchAndCacheAlerts() second error = %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("second fetch returned %d alerts, want 3", len(alerts))
	}

	afterIDs := api.ListAfterIDs()
	if len(afterIDs) != 2 {
		t.Fatalf("list requests = %d, want 2", len(afterIDs))
	}
	if afterIDs[0] != "" {
		t.Errorf("first fetch afterId = %q, want empty (cache cold)", afterIDs[0])
	}
	if afterIDs[1] != "a0002" {
		t.Errorf("second fetch afterId = %q, want a0002", afterIDs[1])
	}
}

func TestFetchAndCacheAlertsForceIgnoresCache(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	api.Seed(alert.Alert{ID: "a0001", Title: "Flood Warning", Severity: "warning", Timestamp: "2024-01-01T10:00:00Z"})
	if _, err := ops.FetchAndCacheAlerts(ctx, false); err != nil {
		t.Fatalf("FetchAndCacheAlerts() error = %v", err)
	}

	if _, err := ops.FetchAndCacheAlerts(ctx, true); err != nil {
		t.Fatalf("FetchAndCacheAlerts(force) error = %v", err)
	}

	afterIDs := api.ListAfterIDs()
	if afterIDs[1] != "" {
		t.Errorf("forced fetch afterId = %q, want empty", afterIDs[1])
	}
}

func TestFetchAndCacheAlertsMergeIdempotent(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	api.Seed(
		alert.Alert{ID: "a0001", Title: "Flood Warning", Severity: "warning", Timestamp: "2024-01-01T10:00:00Z"},
		alert.Alert{ID: "a0002", Title: "Heatwave", Severity: "critical", Timestamp: "2024-01-02T10:00:00Z"},
	)

	// Overlapping full fetches must not duplicate anything locally.
	for i := 0; i < 3; i++ {
		if _, err := ops.FetchAndCacheAlerts(ctx, true); err != nil {
			t.Fatalf("FetchAndCacheAlerts() round %d error = %v", i, err)
		}
	}

	alerts, err := ops.FetchAndCacheAlerts(ctx, true)
	if err != nil {
		t.Fatalf("FetchAndCacheAlerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("merged cache has %d alerts, want 2", len(alerts))
	}
}

func TestFetchAndCacheAlertsNetworkFailureKeepsCache(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	s := testutil.NewTestStore(t)
	c := client.NewClient(client.Config{BaseURL: api.URL()})
	ops := New(s, c, testutil.NewTestLogger())
	ctx := context.Background()

	api.Seed(alert.Alert{ID: "a0001", Title: "Flood Warning", Severity: "warning", Timestamp: "2024-01-01T10:00:00Z"})
	if _, err := ops.FetchAndCacheAlerts(ctx, false); err != nil {
		t.Fatalf("FetchAndCacheAlerts() error = %v", err)
	}

	api.Server.Close()

	if _, err := ops.FetchAndCacheAlerts(ctx, false); err == nil {
		t.Fatal("FetchAndCacheAlerts() with server down succeeded, want error")
	}

	cached, err := s.AllAlerts(ctx)
	if err != nil {
		t.Fatalf("AllAlerts() error = %v", err)
	}
	if len(cached) != 1 {
		t.Errorf("cache has %d alerts after failed fetch, want 1 untouched", len(cached))
	}
}

func TestSyncPendingReportsDrainsQueueInOrder(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	items := []alert.QueueItem{
		{ID: "q-1", Data: alert.Payload{Title: "First", Severity: "info"}},
		{ID: "q-2", Data: alert.Payload{Title: "Second", Severity: "warning"}},
		{ID: "q-3", Data: alert.Payload{Title: "Third", Severity: "critical"}},
	}
	for _, item := range items {
		if err := ops.store.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", item.ID, err)
		}
	}

	if err := ops.SyncPendingReports(ctx); err != nil {
		t.Fatalf("SyncPendingReports() error = %v", err)
	}

	queue, _ := ops.store.Queue(ctx)
	if len(queue) != 0 {
		t.Errorf("queue has %d items after replay, want 0", len(queue))
	}

	remote := api.Alerts()
	if len(remote) != 3 {
		t.Fatalf("server has %d alerts, want 3", len(remote))
	}
	want := []string{"First", "Second", "Third"}
	for i, a := range remote {
		if a.Title != want[i] {
			t.Errorf("server alert %d = %q, want %q (insertion order)", i, a.Title, want[i])
		}
	}
}

func TestSyncPendingReportsStopsAtFirstFailure(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	api.FailCreatesTitled("Second")
	items := []alert.QueueItem{
		{ID: "q-1", Data: alert.Payload{Title: "First", Severity: "info"}},
		{ID: "q-2", Data: alert.Payload{Title: "Second", Severity: "warning"}},
		{ID: "q-3", Data: alert.Payload{Title: "Third", Severity: "critical"}},
	}
	for _, item := range items {
		if err := ops.store.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", item.ID, err)
		}
	}

	if err := ops.SyncPendingReports(ctx); err == nil {
		t.Fatal("SyncPendingReports() succeeded, want error from failing item")
	}

	// q-1 was confirmed and removed; q-2 and q-3 stay queued in order.
	queue, _ := ops.store.Queue(ctx)
	if len(queue) != 2 || queue[0].ID != "q-2" || queue[1].ID != "q-3" {
		t.Fatalf("queue after partial replay = %+v, want [q-2 q-3]", queue)
	}

	// Third is never attempted while Second blocks the queue.
	if got := api.CreateCount(); got != 2 {
		t.Errorf("create requests = %d, want 2 (replay stops at failure)", got)
	}

	// A later trigger resumes from the failure point without resending q-1.
	if err := ops.SyncPendingReports(ctx); err == nil {
		t.Fatal("SyncPendingReports() retry succeeded, want error while Second still fails")
	}
	remote := api.Alerts()
	firstCount := 0
	for _, a := range remote {
		if a.Title == "First" {
			firstCount++
		}
	}
	if firstCount != 1 {
		t.Errorf("server has %d copies of First, want 1 (confirmed items never resent)", firstCount)
	}
}

func TestSyncPendingReportsEmptyQueueNoop(t *testing.T) {
	ops, api := newOperations(t)
	ctx := context.Background()

	if err := ops.SyncPendingReports(ctx); err != nil {
		t.Fatalf("SyncPendingReports() empty queue error = %v", err)
	}
	if got := api.CreateCount(); got != 0 {
		t.Errorf("create requests = %d, want 0", got)
	}
}

func TestAddNotificationAlertUpserts(t *testing.T) {
	ops, _ := newOperations(t)
	ctx := context.Background()

	a := alert.Alert{ID: "a0009", Title: "Storm", Severity: "warning", Timestamp: "2024-02-01T10:00:00Z"}
	if err := ops.AddNotificationAlert(ctx, a); err != nil {
		t.Fatalf("AddNotificationAlert() error = %v", err)
	}

	a.Title = "Storm Upgraded"
	if err := ops.AddNotificationAlert(ctx, a); err != nil {
		t.Fatalf("AddNotificationAlert() second error = %v", err)
	}

	cached, _ := ops.store.AllAlerts(ctx)
	if len(cached) != 1 || cached[0].Title != "Storm Upgraded" {
		t.Errorf("cache = %+v, want single upserted alert", cached)
	}
}

func TestStoreTokenSourceAttachesBearer(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := SetToken(ctx, s, "secret-token"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	c := client.NewClient(client.Config{BaseURL: api.URL(), TokenSource: StoreTokenSource(s)})
	ops := New(s, c, testutil.NewTestLogger())

	if _, err := ops.FetchAndCacheAlerts(ctx, false); err != nil {
		t.Fatalf("FetchAndCacheAlerts() error = %v", err)
	}
	if got := api.LastAuth(); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", got)
	}

	if err := RemoveToken(ctx, s); err != nil {
		t.Fatalf("RemoveToken() error = %v", err)
	}
	if _, err := ops.FetchAndCacheAlerts(ctx, true); err != nil {
		t.Fatalf("FetchAndCacheAlerts() after token removal error = %v", err)
	}
	if got := api.LastAuth(); got != "" {
		t.Errorf("Authorization after removal = %q, want empty", got)
	}
}
