// Package metrics exposes Prometheus instrumentation for the user service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	operations *prometheus.CounterVec
	detached   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evently",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Subsystem: "users",
			Name:      "operations_total",
			Help:      "User operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		detached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Subsystem: "users",
			Name:      "cascade_detached_total",
			Help:      "Related records detached from deleted users.",
		}, []string{"collection"}),
	}
	reg.MustRegister(r.requests, r.latency, r.operations, r.detached)
	return r
}

// Middleware records request count and latency keyed by the chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.latency.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveOperation counts one call of operation, labelled ok or error.
func (r *Recorder) ObserveOperation(operation string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
}

// AddDetached counts n records of collection detached by a cascade.
func (r *Recorder) AddDetached(collection string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.detached.WithLabelValues(collection).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
