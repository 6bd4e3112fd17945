// Package metrics provides Prometheus metrics for the GophDrive server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophdrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tree and trash metrics
	treeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_tree_operations_total",
			Help: "Total tree and trash operations by result",
		},
		[]string{"operation", "result"},
	)

	purgedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_purged_items_total",
			Help: "Total rows removed by permanent purge",
		},
		[]string{"kind", "trigger"},
	)

	purgedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_purged_bytes_total",
			Help: "Total blob bytes released by permanent purge",
		},
		[]string{"trigger"},
	)

	// Content transfer metrics
	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophdrive_content_bytes_uploaded_total",
			Help: "Total bytes uploaded",
		},
	)

	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophdrive_content_bytes_downloaded_total",
			Help: "Total bytes downloaded",
		},
	)

	// Blob store metrics
	blobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophdrive_blob_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	blobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_blob_operations_total",
			Help: "Total blob store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Reaper metrics
	reaperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_reaper_runs_total",
			Help: "Total trash reaper sweeps",
		},
		[]string{"result"},
	)

	reaperLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gophdrive_reaper_last_success_timestamp_seconds",
			Help: "Unix time of the last sweep that finished without item failures",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// OperationResult classifies err as "success", "rejected" for typed
// validation results, or "error".
func OperationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case common.IsValidation(err):
		return "rejected"
	default:
		return "error"
	}
}

// RecordTreeOperation records the outcome of a tree or trash operation.
func RecordTreeOperation(operation string, err error) {
	treeOperationsTotal.WithLabelValues(operation, OperationResult(err)).Inc()
}

// RecordPurge records rows and bytes removed by one purge.
func RecordPurge(trigger string, files, folders int, bytes int64) {
	if files > 0 {
		purgedItemsTotal.WithLabelValues("file", trigger).Add(float64(files))
	}
	if folders > 0 {
		purgedItemsTotal.WithLabelValues("folder", trigger).Add(float64(folders))
	}
	purgedBytesTotal.WithLabelValues(trigger).Add(float64(bytes))
}

// RecordContentUpload records uploaded bytes.
func RecordContentUpload(bytes int64) {
	contentBytesUploaded.Add(float64(bytes))
}

// RecordContentDownload records downloaded bytes.
func RecordContentDownload(bytes int64) {
	contentBytesDownloaded.Add(float64(bytes))
}

// RecordBlobOperation records a blob store operation.
func RecordBlobOperation(backend, operation string, duration time.Duration, success bool) {
	blobOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	blobOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordReaperRun records one sweep. failed is the number of items that
// could not be purged.
func RecordReaperRun(failed int, at time.Time) {
	if failed > 0 {
		reaperRunsTotal.WithLabelValues("partial").Inc()
		return
	}
	reaperRunsTotal.WithLabelValues("success").Inc()
	reaperLastSuccess.Set(float64(at.Unix()))
}

// RecordReaperError records a sweep that could not select candidates.
func RecordReaperError() {
	reaperRunsTotal.WithLabelValues("error").Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. The path
// label is the matched route pattern, so ids do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
