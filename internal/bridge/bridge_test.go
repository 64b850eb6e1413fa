package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rescuemate/alertsync/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestHubBroadcastReachesListener(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan Message, 1)
	c := NewClient(srv.URL, testLogger())
	go func() {
		_ = c.Listen(ctx, func(msg Message) {
			select {
			case received <- msg:
			default:
			}
		})
	}()

	// The listener registers asynchronously; keep broadcasting until one
	// lands or the deadline hits.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case msg := <-received:
			if msg.Type != MessageSyncComplete {
				t.Fatalf("received message type = %q, want %q", msg.Type, MessageSyncComplete)
			}
			return
		case <-ticker.C:
			hub.Broadcast(Message{Type: MessageSyncComplete})
		case <-ctx.Done():
			t.Fatal("no message received before deadline")
		}
	}
}

func TestClientRequestSync(t *testing.T) {
	var gotTag string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotTag = body["tag"]
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	if err := c.RequestSync(context.Background(), SyncTag); err != nil {
		t.Fatalf("RequestSync() error = %v", err)
	}
	if gotTag != SyncTag {
		t.Errorf("daemon received tag %q, want %q", gotTag, SyncTag)
	}
}

func TestClientRequestSyncDaemonDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, testLogger())
	if err := c.RequestSync(context.Background(), SyncTag); err == nil {
		t.Fatal("RequestSync() with daemon down succeeded, want error")
	}
}

func TestClientRequestSyncRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	if err := c.RequestSync(context.Background(), SyncTag); err == nil {
		t.Fatal("RequestSync() against rejecting daemon succeeded, want error")
	}
}

func TestClientHealthy(t *testing.T) {
	var syncCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/sync":
			syncCalls++
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))

	c := NewClient(srv.URL, testLogger())
	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false against a live daemon")
	}
	// The probe must be side-effect free: no sync is triggered.
	if syncCalls != 0 {
		t.Errorf("health probe triggered %d sync request(s)", syncCalls)
	}

	srv.Close()
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true against a closed daemon")
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := NewClient(srv.URL, testLogger())
	go func() {
		done <- c.Listen(ctx, func(Message) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Listen() did not return after context cancel")
	}
}
