package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Transactions        *prometheus.CounterVec
	TransactionDuration prometheus.Histogram

	QueryEvents   *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_transactions_total",
				Help:      "Graph transactions by outcome",
			},
			[]string{"outcome"},
		),
		TransactionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_transaction_duration_seconds",
				Help:      "Graph transaction duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		QueryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Query bus dispatches by query type and event",
			},
			[]string{"event", "query"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query handler duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Transactions,
		c.TransactionDuration,
		c.QueryEvents,
		c.QueryDuration,
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTransaction counts a transaction outcome
func (c *Collector) RecordTransaction(_ context.Context, outcome string, duration time.Duration) {
	c.Transactions.WithLabelValues(outcome).Inc()
	c.TransactionDuration.Observe(duration.Seconds())
}

// Increment counts a query bus event such as query_count or query_errors
func (c *Collector) Increment(metric, label string) {
	c.QueryEvents.WithLabelValues(metric, label).Inc()
}

type queryTimer struct {
	observer prometheus.Observer
	start    time.Time
}

func (t queryTimer) Stop() {
	t.observer.Observe(time.Since(t.start).Seconds())
}

// StartTimer times one query handler call
func (c *Collector) StartTimer(_ string, label string) interface{ Stop() } {
	return queryTimer{observer: c.QueryDuration.WithLabelValues(label), start: time.Now()}
}

// HTTPMiddleware records request counts and latency by route pattern
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
