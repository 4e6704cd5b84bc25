package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkping"

// PrometheusRecorder exposes metrics through a Prometheus registry.
type PrometheusRecorder struct {
	redirects         *prometheus.CounterVec
	redirectCache     *prometheus.CounterVec
	redirectDuration  prometheus.Histogram
	clicksPublished   *prometheus.CounterVec
	breakerOpen       prometheus.Gauge
	clicksProcessed   *prometheus.CounterVec
	persistRetries    prometheus.Counter
	streamReadErrors  prometheus.Counter
	batchSize         prometheus.Histogram
	ingestLag         prometheus.Histogram
	pendingMessages   prometheus.Gauge
	analyticsRequests *prometheus.CounterVec
	analyticsDuration prometheus.Histogram
}

// NewPrometheus registers the application metrics with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)

	return &PrometheusRecorder{
		redirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect requests by outcome",
		}, []string{"status"}),
		redirectCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_cache_lookups_total",
			Help:      "Link target cache lookups by result",
		}, []string{"result"}),
		redirectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Time spent resolving a slug",
			Buckets:   prometheus.DefBuckets,
		}),
		clicksPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_published_total",
			Help:      "Click events appended to the stream by outcome",
		}, []string{"status"}),
		breakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_breaker_open",
			Help:      "1 while the click publisher circuit breaker is open",
		}),
		clicksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_processed_total",
			Help:      "Click stream messages handled by outcome",
		}, []string{"status"}),
		persistRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_persist_retries_total",
			Help:      "Click inserts retried after a failure",
		}),
		streamReadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_read_errors_total",
			Help:      "Failed consumer group reads",
		}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_batch_size",
			Help:      "Messages delivered per consumer group read",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		ingestLag: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "click_ingest_lag_seconds",
			Help:      "Delay between a click and its persistence",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		}),
		pendingMessages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_pending_messages",
			Help:      "Delivered but unacknowledged click stream entries",
		}),
		analyticsRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_requests_total",
			Help:      "Analytics reports computed by outcome",
		}, []string{"status"}),
		analyticsDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_duration_seconds",
			Help:      "Time spent computing an analytics report",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (p *PrometheusRecorder) IncRedirect(status string) {
	p.redirects.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncRedirectCacheHit() {
	p.redirectCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncRedirectCacheMiss() {
	p.redirectCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	p.redirectDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncClickPublished(status string) {
	p.clicksPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) SetPublisherBreakerOpen(open bool) {
	if open {
		p.breakerOpen.Set(1)
		return
	}
	p.breakerOpen.Set(0)
}

func (p *PrometheusRecorder) IncClickProcessed(status string) {
	p.clicksProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncPersistRetry() {
	p.persistRetries.Inc()
}

func (p *PrometheusRecorder) IncStreamReadError() {
	p.streamReadErrors.Inc()
}

func (p *PrometheusRecorder) ObserveBatchSize(size int) {
	p.batchSize.Observe(float64(size))
}

func (p *PrometheusRecorder) ObserveIngestLag(lag time.Duration) {
	p.ingestLag.Observe(lag.Seconds())
}

func (p *PrometheusRecorder) SetPendingMessages(count int64) {
	p.pendingMessages.Set(float64(count))
}

func (p *PrometheusRecorder) IncAnalyticsRequest(status string) {
	p.analyticsRequests.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveAnalyticsDuration(duration time.Duration) {
	p.analyticsDuration.Observe(duration.Seconds())
}
