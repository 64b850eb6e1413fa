package worker

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/pkg/metrics"
)

// RouterConfig holds the daemon HTTP surface configuration
type RouterConfig struct {
	Origin        string // upstream origin for non-asset pass-through
	AllowedOrigin string // CORS allowed origin for foreground contexts
}

// NewRouter builds the daemon's HTTP surface: the event stream and sync
// trigger for the bridge, the push webhook, cache-first asset serving with
// network pass-through for everything else, and metrics.
func NewRouter(w *Worker, hub *bridge.Hub, cfg RouterConfig, log *logger.Logger) (http.Handler, error) {
	originURL, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(originURL)

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/events", hub.ServeHTTP)

	r.With(rateLimit(10, 20)).Post("/push", func(rw http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(rw, "unreadable payload", http.StatusBadRequest)
			return
		}
		// A handler error leaves the event incomplete; the push service's
		// own delivery policy decides whether it is redelivered.
		if err := w.Handle(req.Context(), Event{Kind: EventPush, Payload: body}); err != nil {
			log.ErrorWithErr(err, "push event failed")
			http.Error(rw, "push handling failed", http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusAccepted)
	})

	r.Post("/sync", func(rw http.ResponseWriter, req *http.Request) {
		var body struct {
			Tag string `json:"tag"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Tag == "" {
			body.Tag = bridge.SyncTag
		}
		if err := w.Handle(req.Context(), Event{Kind: EventSync, Tag: body.Tag}); err != nil {
			log.ErrorWithErr(err, "sync event failed")
			http.Error(rw, "sync failed", http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusAccepted)
	})

	// Fetch interception: known GET asset paths are cache-first, everything
	// else passes through untouched.
	r.NotFound(func(rw http.ResponseWriter, req *http.Request) {
		if w.assets.Matches(req) {
			w.assets.ServeHTTP(rw, req)
			return
		}
		metrics.RecordAssetRequest("bypass")
		proxy.ServeHTTP(rw, req)
	})

	return r, nil
}
