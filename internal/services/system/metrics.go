package system

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// MetricsService provides application metrics collection functionality.
type MetricsService struct {
	logger *utils.Logger

	// HTTP metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsInProgress prometheus.Gauge

	// Upload and aggregation metrics
	uploadsTotal        *prometheus.CounterVec
	uploadEventsTotal   prometheus.Counter
	uploadsTruncated    prometheus.Counter
	aggregationDuration prometheus.Histogram
	aggregationQueue    prometheus.Gauge

	// Stats serving metrics
	statsRequestsTotal  *prometheus.CounterVec
	sharePagesRendered  prometheus.Counter
	communityCacheTotal *prometheus.CounterVec
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	m := &MetricsService{
		logger: logger.Named("metrics_service"),
	}

	m.initHTTPMetrics()
	m.initUploadMetrics()
	m.initStatsMetrics()

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// initHTTPMetrics initializes HTTP-related metrics.
func (m *MetricsService) initHTTPMetrics() {
	m.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livereview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livereview_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livereview_http_requests_in_progress",
			Help: "Number of HTTP requests currently in progress",
		},
	)
}

// initUploadMetrics initializes upload pipeline metrics.
func (m *MetricsService) initUploadMetrics() {
	m.uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livereview_uploads_total",
			Help: "Total number of processed uploads by final status",
		},
		[]string{"status"},
	)

	m.uploadEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livereview_upload_events_total",
			Help: "Total number of stream events accepted into aggregation",
		},
	)

	m.uploadsTruncated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livereview_uploads_truncated_total",
			Help: "Number of uploads that hit the event cap",
		},
	)

	m.aggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "livereview_aggregation_duration_seconds",
			Help:    "Wall-clock duration of one aggregation run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.aggregationQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livereview_aggregation_queue_depth",
			Help: "Number of uploads waiting for an aggregation worker",
		},
	)
}

// initStatsMetrics initializes read-model serving metrics.
func (m *MetricsService) initStatsMetrics() {
	m.statsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livereview_stats_requests_total",
			Help: "Total number of personal stats requests by view",
		},
		[]string{"view"},
	)

	m.sharePagesRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livereview_share_pages_rendered_total",
			Help: "Total number of share pages rendered for crawlers",
		},
	)

	m.communityCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livereview_community_cache_total",
			Help: "Community stats cache lookups by outcome",
		},
		[]string{"outcome"},
	)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncHTTPRequestsInProgress increments the in-progress HTTP requests gauge.
func (m *MetricsService) IncHTTPRequestsInProgress() {
	m.httpRequestsInProgress.Inc()
}

// DecHTTPRequestsInProgress decrements the in-progress HTTP requests gauge.
func (m *MetricsService) DecHTTPRequestsInProgress() {
	m.httpRequestsInProgress.Dec()
}

// RecordUpload records the outcome of one aggregation run.
func (m *MetricsService) RecordUpload(status models.UploadStatus, duration time.Duration, events int64) {
	m.uploadsTotal.WithLabelValues(string(status)).Inc()
	m.aggregationDuration.Observe(duration.Seconds())
	if events > 0 {
		m.uploadEventsTotal.Add(float64(events))
	}
}

// RecordTruncated counts an upload that hit the event cap.
func (m *MetricsService) RecordTruncated() {
	m.uploadsTruncated.Inc()
}

// SetAggregationQueueDepth sets the number of queued aggregation jobs.
func (m *MetricsService) SetAggregationQueueDepth(depth int) {
	m.aggregationQueue.Set(float64(depth))
}

// IncStatsRequest counts a personal stats request for one view.
func (m *MetricsService) IncStatsRequest(view string) {
	m.statsRequestsTotal.WithLabelValues(view).Inc()
}

// IncSharePageRendered counts a rendered share page.
func (m *MetricsService) IncSharePageRendered() {
	m.sharePagesRendered.Inc()
}

// IncCommunityCache counts a community cache lookup, outcome "hit" or "miss".
func (m *MetricsService) IncCommunityCache(outcome string) {
	m.communityCacheTotal.WithLabelValues(outcome).Inc()
}

