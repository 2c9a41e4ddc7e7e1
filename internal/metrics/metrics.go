// Package metrics provides Prometheus instrumentation for the API and the sync workers.
//
//	m3ueditor_sync_total{kind,status}          counter: finished sync jobs
//	m3ueditor_sync_duration_seconds{kind}      histogram: sync job duration
//	m3ueditor_sync_channels{kind}              histogram: records imported per successful sync
//	m3ueditor_http_requests_total{method,route,status}
//	m3ueditor_http_request_duration_seconds{method,route}
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	SyncTotal    *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	SyncChannels *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the service collectors on reg. Panics on duplicate registration.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		SyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ueditor_sync_total",
			Help: "Finished sync jobs by kind and terminal status.",
		}, []string{"kind", "status"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "m3ueditor_sync_duration_seconds",
			Help:    "Sync job duration in seconds.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		SyncChannels: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "m3ueditor_sync_channels",
			Help:    "Records imported per successful sync.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ueditor_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "m3ueditor_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.SyncTotal, m.SyncDuration, m.SyncChannels, m.HTTPRequests, m.HTTPDuration)
	return m
}

// ObserveSync records one finished sync job. count is only observed for completed jobs.
func (m *Metrics) ObserveSync(kind, status string, d time.Duration, count int) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(kind, status).Inc()
	m.SyncDuration.WithLabelValues(kind).Observe(d.Seconds())
	if status == "completed" {
		m.SyncChannels.WithLabelValues(kind).Observe(float64(count))
	}
}

// Handler returns the scrape handler for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
