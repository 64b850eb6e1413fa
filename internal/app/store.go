// Package app holds the foreground state container: an in-memory mirror of
// the persistent store with subscription-based change notification. It
// never originates truth; every mutation lands in the persistent store
// first and the container reflects it.
package app

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/domain/alert"
	apperrors "github.com/rescuemate/alertsync/internal/pkg/errors"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/store"
	syncops "github.com/rescuemate/alertsync/internal/sync"
)

// State is the UI-facing view of the store. It is rebuilt from the
// persistent store on every load and never durable itself.
type State struct {
	Alerts           []alert.Alert
	Queue            []alert.QueueItem
	Err              error
	IsAddingAlert    bool
	IsFetchingAlerts bool
	IsSyncingQueue   bool
}

// OnlineFunc reports current connectivity
type OnlineFunc func(ctx context.Context) bool

// Store is the reactive foreground container. State is private; mutation
// happens only through named methods, each of which notifies subscribers
// synchronously after it completes.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func()
	nextSub int

	persist   *store.Store
	ops       *syncops.Operations
	registrar bridge.Registrar
	online    OnlineFunc
	logger    *logger.Logger
}

// NewStore creates the reactive store. registrar may be nil when no
// background scheduler is reachable; every sync then runs in-process.
func NewStore(persist *store.Store, ops *syncops.Operations, registrar bridge.Registrar, online OnlineFunc, log *logger.Logger) *Store {
	return &Store{
		state: State{
			IsFetchingAlerts: true,
		},
		subs:      make(map[int]func()),
		persist:   persist,
		ops:       ops,
		registrar: registrar,
		online:    online,
		logger:    log,
	}
}

// State returns a snapshot of the current state. Slices are cloned so
// subscribers never hold a mutable handle into the container.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state
	snap.Alerts = append([]alert.Alert(nil), s.state.Alerts...)
	snap.Queue = append([]alert.QueueItem(nil), s.state.Queue...)
	return snap
}

// Subscribe registers a listener invoked after every mutation. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// mutate applies fn to the state under lock, then notifies all subscribers.
func (s *Store) mutate(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	listeners := make([]func(), 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

// AddAlert queues an incident report durably and attempts delivery:
// background sync when a scheduler is reachable, an in-process replay
// otherwise. Offline, the remote reload is skipped and the report stays
// queued.
func (s *Store) AddAlert(ctx context.Context, payload alert.Payload) error {
	if err := payload.Validate(); err != nil {
		return apperrors.ValidationError("invalid report", err.Error())
	}

	s.mutate(func(st *State) { st.IsAddingAlert = true })
	defer s.mutate(func(st *State) { st.IsAddingAlert = false })

	item := alert.QueueItem{ID: uuid.NewString(), Data: payload}
	if err := s.persist.Enqueue(ctx, item); err != nil {
		s.mutate(func(st *State) { st.Err = err })
		return err
	}
	s.ReloadFromMemory(ctx)

	s.syncAlerts(ctx)
	return nil
}

func (s *Store) syncAlerts(ctx context.Context) {
	s.RequestBackgroundSync(ctx)
	if s.online != nil && s.online(ctx) {
		s.FetchAlerts(ctx)
	} else {
		s.logger.Info("skipping fetch, offline")
	}
}

// RequestBackgroundSync registers a deferred replay with the background
// scheduler; without one it falls back to replaying in the foreground,
// accepting that the replay will not survive this process closing.
func (s *Store) RequestBackgroundSync(ctx context.Context) {
	if s.registrar != nil {
		err := s.registrar.RequestSync(ctx, bridge.SyncTag)
		if err == nil {
			s.logger.Info("background sync requested")
			return
		}
		s.logger.WithError(err).Warn("background sync unavailable, falling back to foreground")
	}

	s.mutate(func(st *State) { st.IsSyncingQueue = true })
	defer s.mutate(func(st *State) { st.IsSyncingQueue = false })

	if err := s.ops.SyncPendingReports(ctx); err != nil {
		s.logger.ErrorWithErr(err, "foreground queue replay failed")
		s.mutate(func(st *State) { st.Err = err })
		return
	}
	s.ReloadFromMemory(ctx)
}

// FetchAlerts reloads state from the persistent store (fast, possibly
// stale), then refreshes from the remote API. Failures are logged, never
// thrown; consumers only see retained stale state. The fetching flag is
// always cleared.
func (s *Store) FetchAlerts(ctx context.Context) {
	s.fetch(ctx, false)
}

// ForceRefresh clears the entire local alert cache and refetches the full
// collection, recovering from a corrupted or incomplete cache.
func (s *Store) ForceRefresh(ctx context.Context) {
	if err := s.persist.ClearAlerts(ctx); err != nil {
		s.logger.ErrorWithErr(err, "failed to clear alert cache")
		s.mutate(func(st *State) { st.Err = err })
		return
	}
	s.fetch(ctx, true)
}

func (s *Store) fetch(ctx context.Context, force bool) {
	s.mutate(func(st *State) { st.IsFetchingAlerts = true })
	defer s.mutate(func(st *State) { st.IsFetchingAlerts = false })

	s.ReloadFromMemory(ctx)

	alerts, err := s.ops.FetchAndCacheAlerts(ctx, force)
	if err != nil {
		s.logger.ErrorWithErr(err, "remote refresh failed, serving cached alerts")
		s.mutate(func(st *State) { st.Err = err })
		return
	}
	alert.SortByTimestampDesc(alerts)
	s.mutate(func(st *State) {
		st.Alerts = alerts
		st.Err = nil
	})
}

// ReloadFromMemory reflects the persistent store into state without
// touching the network.
func (s *Store) ReloadFromMemory(ctx context.Context) {
	alerts, err := s.persist.AllAlerts(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "failed to reload alerts from store")
		s.mutate(func(st *State) { st.Err = err })
		return
	}
	queue, err := s.persist.Queue(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "failed to reload queue from store")
		s.mutate(func(st *State) { st.Err = err })
		return
	}
	alert.SortByTimestampDesc(alerts)
	s.mutate(func(st *State) {
		st.Alerts = alerts
		st.Queue = queue
	})
}

// HandleBridgeMessage reacts to a completion signal from the background
// context by re-reading the persistent store. This is the only channel by
// which background-driven changes become visible here.
func (s *Store) HandleBridgeMessage(ctx context.Context, msg bridge.Message) {
	if msg.Type != bridge.MessageSyncComplete {
		return
	}
	s.ReloadFromMemory(ctx)
}
