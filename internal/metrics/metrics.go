// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the settlement pipeline.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private Prometheus registry with the service's HTTP and
// settlement metrics.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	resolutionsTotal   *prometheus.CounterVec
	chipsPaidTotal     prometheus.Counter
	chipsForfeitTotal  prometheus.Counter
	outboxBatchesTotal *prometheus.CounterVec
	outboxPending      prometheus.Gauge
}

// NewCollector constructs a collector with default histograms and counters
// registered on a fresh registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hunchd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hunchd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hunchd",
			Subsystem: "settlement",
			Name:      "resolutions_total",
			Help:      "Markets resolved, labelled by outcome kind.",
		}, []string{"kind"}),
		chipsPaidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hunchd",
			Subsystem: "settlement",
			Name:      "chips_paid_total",
			Help:      "Chips credited to winning forecasts.",
		}),
		chipsForfeitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hunchd",
			Subsystem: "settlement",
			Name:      "chips_forfeited_total",
			Help:      "Chips retained by the house (edge, rounding dust, zero-winner pools).",
		}),
		outboxBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hunchd",
			Subsystem: "outbox",
			Name:      "batches_total",
			Help:      "Settlement notification batches, labelled by result.",
		}, []string{"result"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hunchd",
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Settlement batches read from the stream but not yet persisted.",
		}),
	}

	collectors := []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.resolutionsTotal, c.chipsPaidTotal, c.chipsForfeitTotal,
		c.outboxBatchesTotal, c.outboxPending,
	}
	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics. The
// path label uses the matched route pattern when available so per-ID URLs do
// not explode cardinality.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		status := strconv.Itoa(rw.status)

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// ObserveResolution records one settled market. kind is "paid" or
// "no_winners".
func (c *Collector) ObserveResolution(kind string, chipsPaid, houseCut int64) {
	c.resolutionsTotal.WithLabelValues(kind).Inc()
	c.chipsPaidTotal.Add(float64(chipsPaid))
	c.chipsForfeitTotal.Add(float64(houseCut))
}

// ObserveOutboxBatch records one dispatcher batch attempt. result is "ok" or
// "error".
func (c *Collector) ObserveOutboxBatch(result string) {
	c.outboxBatchesTotal.WithLabelValues(result).Inc()
}

// SetOutboxPending sets the in-flight batch gauge.
func (c *Collector) SetOutboxPending(n int) {
	c.outboxPending.Set(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the instrumented chain.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}
