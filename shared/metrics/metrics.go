package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every VeriGrade collector. Services expose it on /metrics.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "verigrade",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verigrade",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published to Redis streams.",
		},
		[]string{"stream", "type", "result"},
	)

	eventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Domain events handled by stream subscribers.",
		},
		[]string{"stream", "group", "result"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job executions.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verigrade",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled job executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)

	syncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "sync",
			Name:      "items_processed_total",
			Help:      "Offline queue items replayed, by outcome.",
		},
		[]string{"outcome"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "gateway",
			Name:      "upstream_requests_total",
			Help:      "Requests proxied by the API gateway, by upstream service and status.",
		},
		[]string{"service", "status"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verigrade",
			Subsystem: "gateway",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of proxied requests until upstream headers arrive.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"service"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read model cache lookups, by key prefix and result.",
		},
		[]string{"view", "result"},
	)

	documentUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verigrade",
			Subsystem: "documents",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored by document uploads, by top-level content type.",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		eventsPublished,
		eventsConsumed,
		jobRuns,
		jobDuration,
		syncItems,
		upstreamRequests,
		upstreamDuration,
		cacheLookups,
		documentUploads,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinHandler mounts Handler on a gin route.
func GinHandler() gin.HandlerFunc {
	h := Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latencies keyed by route template,
// so /v1/invoices/:invoiceId is one series rather than one per invoice.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordEventPublished(stream, eventType string, err error) {
	eventsPublished.WithLabelValues(stream, eventType, result(err)).Inc()
}

func RecordEventConsumed(stream, group string, err error) {
	eventsConsumed.WithLabelValues(stream, group, result(err)).Inc()
}

func RecordJobRun(job string, duration time.Duration, success bool) {
	if job == "" {
		job = "unknown"
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func RecordSyncItem(outcome string) {
	syncItems.WithLabelValues(outcome).Inc()
}

// RecordUpstream counts one proxied request. A zero status means the
// upstream could not be reached.
func RecordUpstream(service string, status int, duration time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequests.WithLabelValues(service, label).Inc()
	upstreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordCacheLookup counts a view cache read. view is the key prefix, such as
// "account" for "account:01234567".
func RecordCacheLookup(view string, hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	cacheLookups.WithLabelValues(view, label).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordDocumentUpload adds size bytes under the media type family, so
// "image/png" counts as "image".
func RecordDocumentUpload(contentType string, size int64) {
	family, _, _ := strings.Cut(contentType, "/")
	if family == "" {
		family = "unknown"
	}
	documentUploads.WithLabelValues(family).Add(float64(size))
}
