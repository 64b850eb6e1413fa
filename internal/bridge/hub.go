// Package bridge is the message channel between the background daemon and
// foreground processes. The daemon broadcasts completion signals over SSE;
// foreground processes listen and re-read the persistent store rather than
// trusting any embedded payload, so a store/message race cannot occur.
package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/rescuemate/alertsync/internal/pkg/logger"
)

// Message is the cross-context signal. Type is the only field foreground
// contexts rely on.
type Message struct {
	Type string `json:"type"`
}

// MessageSyncComplete signals that background-driven store changes are
// ready to be re-read by foreground contexts.
const MessageSyncComplete = "sync-complete"

// SyncTag is the background-sync registration tag for queue replay.
const SyncTag = "sync-messages"

type subscriber struct {
	id string
	ch chan []byte
}

// Hub fans broadcast messages out to every connected foreground context.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Message
	clients    map[string]*subscriber
	logger     *logger.Logger
}

// NewHub creates a hub and starts its dispatch loop
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Message),
		clients:    make(map[string]*subscriber),
		logger:     log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.clients[sub.id] = sub
			h.logger.With("client", sub.id).Debug("foreground context connected")
		case sub := <-h.unregister:
			if _, ok := h.clients[sub.id]; ok {
				delete(h.clients, sub.id)
				close(sub.ch)
			}
			h.logger.With("client", sub.id).Debug("foreground context disconnected")
		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			for _, sub := range h.clients {
				select {
				case sub.ch <- data:
				default:
					// Slow consumer; it will resync from the store on its
					// next signal.
				}
			}
		}
	}
}

// Broadcast sends a message to every connected foreground context
func (h *Hub) Broadcast(msg Message) {
	h.broadcast <- msg
}

// ServeHTTP streams broadcast messages to one foreground context as
// server-sent events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan []byte, 16),
	}
	h.register <- sub
	defer func() { h.unregister <- sub }()

	for {
		select {
		case data, ok := <-sub.ch:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
