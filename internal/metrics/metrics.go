// Package metrics exposes engine telemetry as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"RateSentinel/internal/resolver"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ratesentinel"

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	guardTriggers   *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	missingSymbols  prometheus.Gauge
	referenceRate   prometheus.Gauge
	recomputes      prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector with Go and process collectors registered.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Provider lookups by outcome.",
		},
		[]string{"provider", "result"},
	)
	c.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of provider lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"provider"},
	)
	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Sample cache lookups by result.",
		},
		[]string{"result"},
	)
	c.guardTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "triggered_total",
			Help:      "Samples clamped or replaced by the sanity guard.",
		},
		[]string{"symbol"},
	)
	c.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Rate refresh cycles by result status.",
		},
		[]string{"status"},
	)
	c.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of rate refresh cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
	c.missingSymbols = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "missing_symbols",
		Help:      "Symbols dropped in the last cycle.",
	})
	c.referenceRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "reference_rate",
		Help:      "Current reference rate.",
	})
	c.recomputes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "reference_recomputes_total",
		Help:      "Successful reference rate recomputations.",
	})
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	c.registry.MustRegister(
		c.attempts, c.attemptDuration, c.cacheLookups, c.guardTriggers,
		c.cycles, c.cycleDuration, c.missingSymbols, c.referenceRate, c.recomputes,
		c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt implements resolver.Observer.
func (c *Collector) ObserveAttempt(_ string, a resolver.Attempt) {
	name := a.Provider
	if name == "" {
		name = "invalid"
	}
	result := "success"
	if a.Err != nil {
		result = "failure"
	}
	c.attempts.WithLabelValues(name, result).Inc()
	c.attemptDuration.WithLabelValues(name).Observe(a.Duration.Seconds())
}

// CacheLookup counts a cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if hit {
		c.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.cacheLookups.WithLabelValues("miss").Inc()
}

// GuardTriggered counts a guarded sample.
func (c *Collector) GuardTriggered(symbol string) {
	c.guardTriggers.WithLabelValues(symbol).Inc()
}

// ObserveCycle records one finished refresh cycle.
func (c *Collector) ObserveCycle(status string, d time.Duration, missing int) {
	c.cycles.WithLabelValues(status).Inc()
	c.cycleDuration.Observe(d.Seconds())
	c.missingSymbols.Set(float64(missing))
}

// ReferenceUpdated records the current reference and whether it was recomputed.
func (c *Collector) ReferenceUpdated(value float64, recomputed bool) {
	c.referenceRate.Set(value)
	if recomputed {
		c.recomputes.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests by their mux route template so that
// path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
