package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmarket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskmarket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmarket",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Money operations by outcome (committed, declined, failed).",
		},
		[]string{"operation", "outcome"},
	)

	sagaTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmarket",
			Subsystem: "saga",
			Name:      "transitions_total",
			Help:      "Stage transitions of multi-step money operations.",
		},
		[]string{"operation", "stage"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmarket",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read-through cache lookups by result.",
		},
		[]string{"result"},
	)

	cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskmarket",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted because the cache was full.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		ledgerOperations,
		sagaTransitions,
		cacheLookups,
		cacheEvictions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordOperation counts the outcome of a money operation.
func RecordOperation(operation, outcome string) {
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordSagaStage counts a stage transition of a multi-step operation.
func RecordSagaStage(operation, stage string) {
	sagaTransitions.WithLabelValues(operation, stage).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

func RecordCacheEviction() {
	cacheEvictions.Inc()
}
