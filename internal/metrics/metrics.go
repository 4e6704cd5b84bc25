// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations expose them to Prometheus or keep them in memory for tests.
type Recorder interface {
	// Redirect metrics
	IncRedirect(status string) // status: "found", "not_found", "error"
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveRedirectDuration(duration time.Duration)

	// Click pipeline metrics
	IncClickPublished(status string) // status: "success", "failed", "rejected"
	SetPublisherBreakerOpen(open bool)
	IncClickProcessed(status string) // status: "persisted", "dead_lettered", "dropped", "pending"
	IncPersistRetry()
	IncStreamReadError()
	ObserveBatchSize(size int)
	ObserveIngestLag(lag time.Duration)
	SetPendingMessages(count int64)

	// Analytics metrics
	IncAnalyticsRequest(status string) // status: apperror.Kind of the result
	ObserveAnalyticsDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
