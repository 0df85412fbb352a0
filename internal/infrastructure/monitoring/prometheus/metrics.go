package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
)

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScoreBuckets        = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	DefaultUploadSizeBuckets   = []float64{10e3, 100e3, 1e6, 5e6, 10e6, 25e6}
)

// AppMetrics holds every metric family the service exports.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Sessions
	SessionOperationsTotal   CounterVec
	SessionOperationDuration HistogramVec
	SessionActive            GaugeVec
	FilingScore              HistogramVec
	AsyncTasksTotal          CounterVec
	UploadsTotal             CounterVec
	UploadSize               HistogramVec

	// Events
	EventsConsumedTotal CounterVec
}

// NewAppMetrics registers all metric families on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.SessionOperationsTotal = collector.RegisterCounter("session_operations_total", "Session operations by outcome", "operation", "result")
	m.SessionOperationDuration = collector.RegisterHistogram("session_operation_duration_seconds", "Session operation duration", DefaultHTTPDurationBuckets, "operation")
	m.SessionActive = collector.RegisterGauge("sessions_active", "Sessions held in memory")
	m.FilingScore = collector.RegisterHistogram("filing_score", "Overall readiness score at save time", DefaultScoreBuckets, "filing_type")
	m.AsyncTasksTotal = collector.RegisterCounter("async_tasks_total", "Completed background tasks", "kind", "outcome")
	m.UploadsTotal = collector.RegisterCounter("uploads_total", "Accepted uploads", "filing_type", "category")
	m.UploadSize = collector.RegisterHistogram("upload_size_bytes", "Accepted upload size", DefaultUploadSizeBuckets, "filing_type")

	m.EventsConsumedTotal = collector.RegisterCounter("events_consumed_total", "Domain events consumed", "topic", "event_type")

	return m
}

// RecordHTTPRequest records one completed request. path is the route
// template, never the raw URL.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordEvent(topic, eventType string) {
	m.EventsConsumedTotal.WithLabelValues(topic, eventType).Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// session.Metrics
// ─────────────────────────────────────────────────────────────────────────────

func (m *AppMetrics) RecordOperation(op string, accepted bool, d time.Duration) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.SessionOperationsTotal.WithLabelValues(op, result).Inc()
	m.SessionOperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *AppMetrics) RecordScore(ft filing.FilingType, score int) {
	m.FilingScore.WithLabelValues(string(ft)).Observe(float64(score))
}

func (m *AppMetrics) RecordTask(kind session.TaskKind, outcome session.TaskOutcome) {
	m.AsyncTasksTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (m *AppMetrics) RecordUpload(ft filing.FilingType, category filing.UploadCategory, size int64) {
	m.UploadsTotal.WithLabelValues(string(ft), string(category)).Inc()
	m.UploadSize.WithLabelValues(string(ft)).Observe(float64(size))
}

func (m *AppMetrics) SetActiveSessions(n int) {
	m.SessionActive.WithLabelValues().Set(float64(n))
}

var _ session.Metrics = (*AppMetrics)(nil)

//Personal.AI order the ending
