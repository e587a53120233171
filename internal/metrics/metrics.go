// Package metrics provides Prometheus instrumentation for the wagering engine.
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
	// VotesTotal counts admitted votes, partitioned by settlement mode.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendsbet_votes_total",
		Help: "Total number of votes admitted",
	}, []string{"mode"})

	// VoteRejections counts votes rejected by the validator.
	VoteRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendsbet_vote_rejections_total",
		Help: "Votes rejected by the vote validator",
	}, []string{"reason"})

	// SettlementsTotal counts resolved scenarios by mode.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendsbet_settlements_total",
		Help: "Total number of scenarios settled",
	}, []string{"mode"})

	// SettledTokens tracks the cumulative pot size settled, by mode.
	SettledTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendsbet_settled_tokens_total",
		Help: "Cumulative tokens paid out or refunded at settlement",
	}, []string{"mode"})

	// TransfersTotal counts peer-to-peer transfers.
	TransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "friendsbet_transfers_total",
		Help: "Total number of peer-to-peer transfers",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendsbet_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendsbet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendsbet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the URL path for the label; the API surface is small
		// enough that cardinality stays manageable.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
