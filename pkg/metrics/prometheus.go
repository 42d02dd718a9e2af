// Package metrics provides Prometheus metrics for the VIGIL proctoring
// signal engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the VIGIL service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Frame Pipeline Metrics - What really matters for proctoring
	framesProcessed prometheus.Counter
	framesDuplicate prometheus.Counter
	framesNoFace    prometheus.Counter
	framesStale     prometheus.Counter
	analysisLatency prometheus.Histogram
	behaviorFlags   *prometheus.CounterVec

	// Identity Drift Metrics
	driftTicks        prometheus.Counter
	driftTicksSkipped prometheus.Counter
	driftDistance     prometheus.Histogram
	driftTransitions  *prometheus.CounterVec

	// Suspicion Metrics
	levelTransitions *prometheus.CounterVec

	// Calibration Metrics
	calibrations        prometheus.Counter
	calibrationFailures prometheus.Counter
	calibrationSamples  prometheus.Histogram

	// Reporting Metrics
	violationsReported *prometheus.CounterVec
	reportFailures     prometheus.Counter
	evidenceUploads    prometheus.Counter

	// Session Metrics
	activeSessions  prometheus.Gauge
	detectionLoops  prometheus.Gauge
	sessionsRemoved prometheus.Counter

	// Baseline Store Metrics
	storeSaveLatency prometheus.Histogram
	storeLoadLatency prometheus.Histogram
	storeErrors      prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vigil",
		subsystem:        "proctor",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	latencyBuckets := []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of frames analyzed",
	})

	m.framesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_duplicate_total",
		Help:      "Total number of duplicate frame submissions dropped",
	})

	m.framesNoFace = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_no_face_total",
		Help:      "Total number of frames with zero detected faces",
	})

	m.framesStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_stale_total",
		Help:      "Total number of frames dropped because their timestamp did not advance",
	})

	m.analysisLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_latency_milliseconds",
		Help:      "Per-frame behavior analysis latency in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.behaviorFlags = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "behavior_flags_total",
		Help:      "Behavioral warnings raised, by check",
	}, []string{"check"})

	m.driftTicks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drift_ticks_total",
		Help:      "Total number of identity drift evaluation ticks",
	})

	m.driftTicksSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drift_ticks_skipped_total",
		Help:      "Drift ticks skipped for lack of baseline or fresh landmarks",
	})

	m.driftDistance = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drift_distance",
		Help:      "Identity anomaly distance per drift tick",
		Buckets:   []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 5, 7.5, 10, 20},
	})

	m.driftTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drift_transitions_total",
		Help:      "Identity drift status entries, by status",
	}, []string{"status"})

	m.levelTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warning_level_transitions_total",
		Help:      "Behavioral warning level changes, by level entered",
	}, []string{"level"})

	m.calibrations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibrations_total",
		Help:      "Total number of successful calibrations",
	})

	m.calibrationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_failures_total",
		Help:      "Total number of failed calibration attempts",
	})

	m.calibrationSamples = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_samples",
		Help:      "Valid samples collected per calibration attempt",
		Buckets:   []float64{1, 3, 5, 10, 15, 20, 30, 50},
	})

	m.violationsReported = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "violations_reported_total",
		Help:      "Violation records handed to the reporting sink, by type",
	}, []string{"type"})

	m.reportFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "report_failures_total",
		Help:      "Violation or evidence uploads that failed (dropped, non-fatal)",
	})

	m.evidenceUploads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evidence_uploads_total",
		Help:      "Evidence snapshots handed to the reporting sink",
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Number of registered sessions",
	})

	m.detectionLoops = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detection_loops",
		Help:      "Number of running detection loops",
	})

	m.sessionsRemoved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_removed_total",
		Help:      "Sessions explicitly removed and cleaned up",
	})

	m.storeSaveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_save_latency_milliseconds",
		Help:      "Baseline store save latency in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.storeLoadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_load_latency_milliseconds",
		Help:      "Baseline store load latency in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Baseline store operation errors",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests, by endpoint, method, and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and error type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   latencyBuckets,
	})
}

// RecordFrameProcessed increments the processed frame counter.
func RecordFrameProcessed() {
	globalManager.framesProcessed.Inc()
}

// RecordFrameDuplicate increments the duplicate frame counter.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// RecordFrameNoFace increments the no-face frame counter.
func RecordFrameNoFace() {
	globalManager.framesNoFace.Inc()
}

// RecordFrameStale increments the stale frame counter.
func RecordFrameStale() {
	globalManager.framesStale.Inc()
}

// RecordAnalysisLatency records per-frame analysis latency.
func RecordAnalysisLatency(latencyMs float64) {
	globalManager.analysisLatency.Observe(latencyMs)
}

// RecordBehaviorFlag increments the warning counter for a behavioral check.
func RecordBehaviorFlag(check string) {
	globalManager.behaviorFlags.WithLabelValues(check).Inc()
}

// RecordDriftTick increments the drift tick counter.
func RecordDriftTick() {
	globalManager.driftTicks.Inc()
}

// RecordDriftTickSkipped increments the skipped drift tick counter.
func RecordDriftTickSkipped() {
	globalManager.driftTicksSkipped.Inc()
}

// RecordDriftDistance records one identity anomaly distance.
func RecordDriftDistance(distance float64) {
	globalManager.driftDistance.Observe(distance)
}

// RecordDriftTransition records entry into a drift status.
func RecordDriftTransition(status string) {
	globalManager.driftTransitions.WithLabelValues(status).Inc()
}

// RecordLevelTransition records entry into a behavioral warning level.
func RecordLevelTransition(level string) {
	globalManager.levelTransitions.WithLabelValues(level).Inc()
}

// RecordCalibration increments the successful calibration counter.
func RecordCalibration() {
	globalManager.calibrations.Inc()
}

// RecordCalibrationFailure increments the failed calibration counter.
func RecordCalibrationFailure() {
	globalManager.calibrationFailures.Inc()
}

// RecordCalibrationSamples records the valid sample count of an attempt.
func RecordCalibrationSamples(n int) {
	globalManager.calibrationSamples.Observe(float64(n))
}

// RecordViolationReported increments the violation counter for a type.
func RecordViolationReported(violationType string) {
	globalManager.violationsReported.WithLabelValues(violationType).Inc()
}

// RecordReportFailure increments the dropped-report counter.
func RecordReportFailure() {
	globalManager.reportFailures.Inc()
}

// RecordEvidenceUpload increments the evidence upload counter.
func RecordEvidenceUpload() {
	globalManager.evidenceUploads.Inc()
}

// UpdateActiveSessions sets the registered session gauge.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// UpdateDetectionLoops sets the running detection loop gauge.
func UpdateDetectionLoops(count int) {
	globalManager.detectionLoops.Set(float64(count))
}

// RecordSessionRemoved increments the removed session counter.
func RecordSessionRemoved() {
	globalManager.sessionsRemoved.Inc()
}

// RecordStoreSaveLatency records baseline store save latency.
func RecordStoreSaveLatency(latencyMs float64) {
	globalManager.storeSaveLatency.Observe(latencyMs)
}

// RecordStoreLoadLatency records baseline store load latency.
func RecordStoreLoadLatency(latencyMs float64) {
	globalManager.storeLoadLatency.Observe(latencyMs)
}

// RecordStoreError increments the store error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// RecordHTTPRequest increments the request counter for endpoint/method/status.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records the duration of an HTTP request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause duration.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
