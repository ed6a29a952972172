package models

import "time"

// MetricsSnapshot is a lightweight summary of process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SyncRuns                 uint64    `json:"sync_runs"`
	SyncFailures             uint64    `json:"sync_failures"`
	RowsWritten              uint64    `json:"rows_written"`
	CoursesMatched           uint64    `json:"courses_matched"`
	CoursesUnmatched         uint64    `json:"courses_unmatched"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
