// Package metrics provides Prometheus instrumentation for the investment engine.
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
	// PositionsCreated counts investment positions opened.
	PositionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_positions_created_total",
		Help: "Total number of investment positions created",
	})

	// GrowthApplications counts daily growth applications by outcome
	// (applied, skipped, failed).
	GrowthApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_growth_applications_total",
		Help: "Daily growth applications by outcome",
	}, []string{"outcome"})

	// Withdrawals counts withdrawals by scope (partial, full, redemption).
	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_withdrawals_total",
		Help: "Total withdrawals by scope",
	}, []string{"scope"})

	// Cancellations counts cancelled positions.
	Cancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_cancellations_total",
		Help: "Total cancelled positions",
	})

	// LedgerTransactions counts ledger records written, by movement kind.
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_ledger_transactions_total",
		Help: "Ledger transaction records written",
	}, []string{"kind"})

	// GrowthBatchDuration tracks wall time of the daily growth batch.
	GrowthBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invest_growth_batch_duration_seconds",
		Help:    "Duration of the daily growth batch in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invest_http_request_duration_seconds",
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

		// Use the raw path for the label; route cardinality is low here.
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
