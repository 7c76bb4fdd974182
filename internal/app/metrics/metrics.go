package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	issuances = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "issuance",
			Name:      "assets_issued_total",
			Help:      "Total number of assets issued.",
		},
	)

	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "valuation",
			Name:      "ticks_total",
			Help:      "Total number of revaluation ticks by outcome.",
		},
		[]string{"outcome"},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "market_layer",
			Subsystem: "valuation",
			Name:      "tick_duration_seconds",
			Help:      "Duration of revaluation ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	trendingQueries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "market_layer",
			Subsystem: "ranking",
			Name:      "trending_query_duration_seconds",
			Help:      "Duration of trending queries.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		issuances,
		ticks,
		tickDuration,
		trendingQueries,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordIssuance counts one successful asset issuance.
func RecordIssuance() {
	issuances.Inc()
}

// RecordTick records one revaluation tick with its outcome label.
func RecordTick(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	ticks.WithLabelValues(outcome).Inc()
	tickDuration.Observe(duration.Seconds())
}

// RecordTrendingQuery records the duration of one trending query.
func RecordTrendingQuery(duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	trendingQueries.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses ids out of asset routes so metric cardinality stays
// bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "assets" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/assets"
	}
	if len(parts) == 2 {
		return "/assets/:id"
	}
	return "/assets/:id/" + parts[2]
}
