package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rescuemate/alertsync/internal/domain/alert"
)

// FakeAPI is an in-memory implementation of the remote alert API for tests.
// It records the afterId of every list request and the Authorization header
// of the most recent request.
type FakeAPI struct {
	Server *httptest.Server

	mu           sync.Mutex
	alerts       []alert.Alert
	nextID       int
	failTitles   map[string]bool
	listAfterIDs []string
	createCount  int
	lastAuth     string
}

// NewFakeAPI starts a fake alert API server
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		nextID:     1,
		failTitles: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake server's base URL
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// Seed adds alerts directly to the server-side collection
func (f *FakeAPI) Seed(alerts ...alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alerts...)
}

// FailCreatesTitled makes POSTs with the given title fail with a 500
func (f *FakeAPI) FailCreatesTitled(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTitles[title] = true
}

// ListAfterIDs returns the afterId parameter of every list request,
// "" for full fetches.
func (f *FakeAPI) ListAfterIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listAfterIDs...)
}

// CreateCount returns how many create requests arrived (including failed ones)
func (f *FakeAPI) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCount
}

// LastAuth returns the Authorization header of the most recent request
func (f *FakeAPI) LastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

// Alerts returns a copy of the server-side collection
func (f *FakeAPI) Alerts() []alert.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alert.Alert(nil), f.alerts...)
}

func (f *FakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/alerts" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == "/api/alerts" && r.Method == http.MethodGet:
		f.handleList(w, r)
	case r.URL.Path == "/api/alerts" && r.Method == http.MethodPost:
		f.handleCreate(w, r)
	case r.URL.Path == "/api/register" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sub-1"})
	case r.URL.Path == "/api/reset" && r.Method == http.MethodPost:
		f.mu.Lock()
		f.alerts = nil
		f.nextID = 1
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAPI) handleList(w http.ResponseWriter, r *http.Request) {
	afterID := r.URL.Query().Get("afterId")

	f.mu.Lock()
	f.listAfterIDs = append(f.listAfterIDs, afterID)
	out := make([]alert.Alert, 0, len(f.alerts))
	for _, a := range f.alerts {
		if afterID == "" || a.ID > afterID {
			out = append(out, a)
		}
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (f *FakeAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload alert.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"message":"invalid body"}`, http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.createCount++
	if payload.Title == "" || payload.Severity == "" {
		f.mu.Unlock()
		http.Error(w, `{"message":"missing fields"}`, http.StatusBadRequest)
		return
	}
	if f.failTitles[payload.Title] {
		f.mu.Unlock()
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
		return
	}
	created := alert.Alert{
		ID:        fmt.Sprintf("a%04d", f.nextID),
		Title:     payload.Title,
		Severity:  payload.Severity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	f.nextID++
	f.alerts = append(f.alerts, created)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}
