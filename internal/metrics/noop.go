package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncRedirect(status string)                       {}
func (n *NoopRecorder) IncRedirectCacheHit()                            {}
func (n *NoopRecorder) IncRedirectCacheMiss()                           {}
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration)  {}
func (n *NoopRecorder) IncClickPublished(status string)                 {}
func (n *NoopRecorder) SetPublisherBreakerOpen(open bool)               {}
func (n *NoopRecorder) IncClickProcessed(status string)                 {}
func (n *NoopRecorder) IncPersistRetry()                                {}
func (n *NoopRecorder) IncStreamReadError()                             {}
func (n *NoopRecorder) ObserveBatchSize(size int)                       {}
func (n *NoopRecorder) ObserveIngestLag(lag time.Duration)              {}
func (n *NoopRecorder) SetPendingMessages(count int64)                  {}
func (n *NoopRecorder) IncAnalyticsRequest(status string)               {}
func (n *NoopRecorder) ObserveAnalyticsDuration(duration time.Duration) {}
