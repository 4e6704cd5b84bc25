package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Redirects             map[string]uint64
	RedirectCacheHits     uint64
	RedirectCacheMisses   uint64
	RedirectDurationCount uint64
	ClicksPublished       map[string]uint64
	PublisherBreakerOpen  bool
	ClicksProcessed       map[string]uint64
	PersistRetries        uint64
	StreamReadErrors      uint64
	BatchCount            uint64
	BatchMessages         uint64
	PendingMessages       int64
	AnalyticsRequests     map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectCacheHits     uint64
	redirectCacheMisses   uint64
	redirectDurationCount uint64
	breakerOpen           atomic.Bool
	persistRetries        uint64
	streamReadErrors      uint64
	batchCount            uint64
	batchMessages         uint64
	pendingMessages       int64

	mu        sync.Mutex
	redirects map[string]uint64
	published map[string]uint64
	processed map[string]uint64
	analytics map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		redirects: make(map[string]uint64),
		published: make(map[string]uint64),
		processed: make(map[string]uint64),
		analytics: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Redirects:             copyCounts(m.redirects),
		RedirectCacheHits:     atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:   atomic.LoadUint64(&m.redirectCacheMisses),
		RedirectDurationCount: atomic.LoadUint64(&m.redirectDurationCount),
		ClicksPublished:       copyCounts(m.published),
		PublisherBreakerOpen:  m.breakerOpen.Load(),
		ClicksProcessed:       copyCounts(m.processed),
		PersistRetries:        atomic.LoadUint64(&m.persistRetries),
		StreamReadErrors:      atomic.LoadUint64(&m.streamReadErrors),
		BatchCount:            atomic.LoadUint64(&m.batchCount),
		BatchMessages:         atomic.LoadUint64(&m.batchMessages),
		PendingMessages:       atomic.LoadInt64(&m.pendingMessages),
		AnalyticsRequests:     copyCounts(m.analytics),
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, status string) {
	m.mu.Lock()
	counts[status]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IncRedirect increments the redirect counter for status.
func (m *InMemoryRecorder) IncRedirect(status string) {
	m.inc(m.redirects, status)
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
}

// IncClickPublished increments the publish counter for status.
func (m *InMemoryRecorder) IncClickPublished(status string) {
	m.inc(m.published, status)
}

// SetPublisherBreakerOpen records the publisher circuit breaker state.
func (m *InMemoryRecorder) SetPublisherBreakerOpen(open bool) {
	m.breakerOpen.Store(open)
}

// IncClickProcessed increments the processed counter for status.
func (m *InMemoryRecorder) IncClickProcessed(status string) {
	m.inc(m.processed, status)
}

// IncPersistRetry increments the persistence retry counter.
func (m *InMemoryRecorder) IncPersistRetry() {
	atomic.AddUint64(&m.persistRetries, 1)
}

// IncStreamReadError increments the stream read error counter.
func (m *InMemoryRecorder) IncStreamReadError() {
	atomic.AddUint64(&m.streamReadErrors, 1)
}

// ObserveBatchSize records one delivered batch.
func (m *InMemoryRecorder) ObserveBatchSize(size int) {
	atomic.AddUint64(&m.batchCount, 1)
	atomic.AddUint64(&m.batchMessages, uint64(size))
}

// ObserveIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveIngestLag(lag time.Duration) {}

// SetPendingMessages records the pending entry count.
func (m *InMemoryRecorder) SetPendingMessages(count int64) {
	atomic.StoreInt64(&m.pendingMessages, count)
}

// IncAnalyticsRequest increments the analytics counter for status.
func (m *InMemoryRecorder) IncAnalyticsRequest(status string) {
	m.inc(m.analytics, status)
}

// ObserveAnalyticsDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsDuration(duration time.Duration) {}
