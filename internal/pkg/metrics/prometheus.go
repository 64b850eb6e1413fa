package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alertsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// Sync metrics
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "sync",
			Name:      "fetches_total",
			Help:      "Total number of alert fetches against the remote API",
		},
		[]string{"mode", "outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alertsync",
			Subsystem: "sync",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote alert fetches in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	queueReplayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "queue",
			Name:      "replayed_total",
			Help:      "Total number of queue items confirmed by the server",
		},
	)

	queueReplayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "queue",
			Name:      "replay_failures_total",
			Help:      "Total number of queue replays that stopped on a failed item",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "alertsync",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of reports currently pending in the sync queue",
		},
	)

	pushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "push",
			Name:      "received_total",
			Help:      "Total number of push payloads received",
		},
		[]string{"outcome"},
	)

	assetCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsync",
			Subsystem: "assets",
			Name:      "requests_total",
			Help:      "Asset requests served by the cache-first handler",
		},
		[]string{"result"},
	)
)

// RecordFetch records the outcome and duration of a remote alert fetch
func RecordFetch(mode string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	fetchTotal.WithLabelValues(mode, outcome).Inc()
	fetchDuration.Observe(d.Seconds())
}

// RecordReplayed counts a queue item confirmed by the server
func RecordReplayed() {
	queueReplayedTotal.Inc()
}

// RecordReplayFailure counts a replay stopped by a failed item
func RecordReplayFailure() {
	queueReplayFailures.Inc()
}

// SetQueueDepth records the number of pending reports
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordPush counts a received push payload by outcome
func RecordPush(outcome string) {
	pushTotal.WithLabelValues(outcome).Inc()
}

// RecordAssetRequest counts an asset request by cache result (hit/miss/bypass)
func RecordAssetRequest(result string) {
	assetCacheTotal.WithLabelValues(result).Inc()
}

// Middleware returns an HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming responses keep working behind the
// middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
