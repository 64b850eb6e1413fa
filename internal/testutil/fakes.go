package testutil

import (
	"context"
	"sync"

	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/notify"
)

// FakeNotifier records shown notifications keyed by tag
type FakeNotifier struct {
	mu    sync.Mutex
	byTag map[string]notify.Notification
	order []string
	err   error
}

// NewFakeNotifier creates a recording notifier
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{byTag: make(map[string]notify.Notification)}
}

// FailWith makes Show return err
func (f *FakeNotifier) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Show implements notify.Notifier
func (f *FakeNotifier) Show(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, seen := f.byTag[n.Tag]; !seen {
		f.order = append(f.order, n.Tag)
	}
	f.byTag[n.Tag] = n
	return nil
}

// Shown returns the current notification for tag, if any
func (f *FakeNotifier) Shown(tag string) (notify.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.byTag[tag]
	return n, ok
}

// Count returns the number of distinct tags shown
func (f *FakeNotifier) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// FakeBroadcaster records broadcast bridge messages
type FakeBroadcaster struct {
	mu       sync.Mutex
	messages []bridge.Message
}

// Broadcast implements worker.Broadcaster
func (f *FakeBroadcaster) Broadcast(msg bridge.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

// Messages returns all broadcast messages
func (f *FakeBroadcaster) Messages() []bridge.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bridge.Message(nil), f.messages...)
}

// FakeRegistrar records background-sync requests and can be made to fail
type FakeRegistrar struct {
	mu    sync.Mutex
	err   error
	calls []string
}

// FailWith makes RequestSync return err, simulating an unreachable daemon
func (f *FakeRegistrar) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// RequestSync implements bridge.Registrar
func (f *FakeRegistrar) RequestSync(_ context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, tag)
	return nil
}

// Calls returns the recorded sync tags
func (f *FakeRegistrar) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
