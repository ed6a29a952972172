package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/assignment-sync/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	canvasDuration  *prometheus.HistogramVec
	canvasTotal     *prometheus.CounterVec
	sheetDuration   *prometheus.HistogramVec
	sheetTotal      *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	rowsWritten     prometheus.Counter
	courseMatches   *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	cacheDuration   prometheus.Histogram

	requestCount         uint64
	requestDurationTotal uint64
	syncRunCount         uint64
	syncFailureCount     uint64
	rowsWrittenCount     uint64
	matchedCount         uint64
	unmatchedCount       uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	canvasDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canvas_request_duration_seconds",
		Help:    "Duration of Canvas API page requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	canvasTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_requests_total",
		Help: "Total Canvas API page requests",
	}, []string{"endpoint", "status"})

	sheetDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sheet_request_duration_seconds",
		Help:    "Duration of sheet API actions",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}, []string{"action"})

	sheetTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_requests_total",
		Help: "Total sheet API actions by outcome",
	}, []string{"action", "status"})

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Sync sessions by mode and outcome",
	}, []string{"mode", "status"})

	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_rows_written_total",
		Help: "Rows the sheet reported as written",
	})

	courseMatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "course_matches_total",
		Help: "Current Canvas courses by match result",
	}, []string{"result"})

	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Tab catalog cache lookups by result",
	}, []string{"result"})

	cacheDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_operation_duration_seconds",
		Help:    "Duration of cache lookups",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, canvasDuration, canvasTotal, sheetDuration, sheetTotal, syncRuns, rowsWritten, courseMatches, cacheOps, cacheDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		canvasDuration:  canvasDuration,
		canvasTotal:     canvasTotal,
		sheetDuration:   sheetDuration,
		sheetTotal:      sheetTotal,
		syncRuns:        syncRuns,
		rowsWritten:     rowsWritten,
		courseMatches:   courseMatches,
		cacheOps:        cacheOps,
		cacheDuration:   cacheDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveCanvasRequest records one Canvas page request. Status 0 means a transport failure.
func (m *MetricsService) ObserveCanvasRequest(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.canvasDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	m.canvasTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// ObserveSheetRequest records one sheet action.
func (m *MetricsService) ObserveSheetRequest(action string, status models.SyncStatus, duration time.Duration) {
	if m == nil {
		return
	}
	if duration > 0 {
		m.sheetDuration.WithLabelValues(action).Observe(duration.Seconds())
	}
	m.sheetTotal.WithLabelValues(action, string(status)).Inc()
}

// RecordMatches counts matched and unmatched current courses.
func (m *MetricsService) RecordMatches(matched, unmatched int) {
	if m == nil {
		return
	}
	m.courseMatches.WithLabelValues("matched").Add(float64(matched))
	m.courseMatches.WithLabelValues("unmatched").Add(float64(unmatched))
	atomic.AddUint64(&m.matchedCount, uint64(matched))
	atomic.AddUint64(&m.unmatchedCount, uint64(unmatched))
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheOps.WithLabelValues(result).Inc()
	m.cacheDuration.Observe(duration.Seconds())
}

// RecordSyncRun counts a finished sync session.
func (m *MetricsService) RecordSyncRun(mode models.SyncMode, err error, rowsWritten int) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
		atomic.AddUint64(&m.syncFailureCount, 1)
	}
	m.syncRuns.WithLabelValues(string(mode), status).Inc()
	atomic.AddUint64(&m.syncRunCount, 1)
	if rowsWritten > 0 {
		m.rowsWritten.Add(float64(rowsWritten))
		atomic.AddUint64(&m.rowsWrittenCount, uint64(rowsWritten))
	}
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SyncRuns:                 atomic.LoadUint64(&m.syncRunCount),
		SyncFailures:             atomic.LoadUint64(&m.syncFailureCount),
		RowsWritten:              atomic.LoadUint64(&m.rowsWrittenCount),
		CoursesMatched:           atomic.LoadUint64(&m.matchedCount),
		CoursesUnmatched:         atomic.LoadUint64(&m.unmatchedCount),
		CacheHits:                atomic.LoadUint64(&m.cacheHitCount),
		CacheMisses:              atomic.LoadUint64(&m.cacheMissCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
