// Package metrics provides Prometheus instrumentation for tsforge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AugmentCalls counts augment calls by engine and operation.
	AugmentCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsforge_augment_calls_total",
		Help: "Total number of augment calls by engine and operation",
	}, []string{"engine", "op"})

	// AugmentRows counts input rows processed by successful augment calls.
	AugmentRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsforge_augment_rows_total",
		Help: "Total number of rows augmented by engine and operation",
	}, []string{"engine", "op"})

	// AugmentDuration tracks per-call wall time.
	AugmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tsforge_augment_duration_seconds",
		Help:    "Latency of augment calls in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
	}, []string{"engine", "op"})

	// AugmentErrors counts failed augment calls.
	AugmentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsforge_augment_errors_total",
		Help: "Total number of failed augment calls by engine and operation",
	}, []string{"engine", "op"})
)

// ObserveAugment records one completed augment call.
func ObserveAugment(engine, op string, rows int64, d time.Duration, err error) {
	AugmentCalls.WithLabelValues(engine, op).Inc()
	AugmentDuration.WithLabelValues(engine, op).Observe(d.Seconds())
	if err != nil {
		AugmentErrors.WithLabelValues(engine, op).Inc()
		return
	}
	AugmentRows.WithLabelValues(engine, op).Add(float64(rows))
}

// ServeMetrics starts an HTTP server on the given address to serve
// Prometheus metrics at /metrics.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go server.ListenAndServe()
	return server
}
