// Package metrics provides Prometheus metrics for the KV explorer.
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
	// HTTP API metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airkv_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airkv_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Remote KV service metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airkv_remote_requests_total",
			Help: "Total requests sent to the remote KV service",
		},
		[]string{"operation", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airkv_remote_request_duration_seconds",
			Help:    "Remote KV request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	remoteCountCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airkv_remote_count_cache_total",
			Help: "Namespace key count cache lookups",
		},
		[]string{"result"},
	)

	// Local emulator store metrics
	localOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airkv_local_operations_total",
			Help: "Total operations against local emulator state",
		},
		[]string{"operation", "status"},
	)

	localOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airkv_local_operation_duration_seconds",
			Help:    "Local operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	localNamespacesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airkv_local_namespaces_skipped_total",
			Help: "Namespaces omitted from a listing because they could not be read",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP API request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRemoteRequest records a call to the remote KV service. status is 0 on transport failure.
func RecordRemoteRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	remoteRequestsTotal.WithLabelValues(operation, label).Inc()
	remoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCountCache records a key count cache hit or miss.
func RecordCountCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	remoteCountCacheTotal.WithLabelValues(result).Inc()
}

// RecordLocalOperation records a local store operation.
func RecordLocalOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	localOperationsTotal.WithLabelValues(operation, status).Inc()
	localOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSkippedNamespaces adds n to the skipped namespace counter.
func RecordSkippedNamespaces(n int) {
	localNamespacesSkipped.Add(float64(n))
}
