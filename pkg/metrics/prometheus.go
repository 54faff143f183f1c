// Package metrics provides Prometheus metrics for the HPDE analytics CLI.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by callers.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Manager manages all Prometheus metrics for the CLI.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// API client metrics
	apiRequests        *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiRetries         *prometheus.CounterVec
	apiErrors          *prometheus.CounterVec

	// Authentication metrics
	handshakes        *prometheus.CounterVec
	handshakeDuration prometheus.Histogram
	tokenStoreOps     *prometheus.CounterVec
	callbackRequests  *prometheus.CounterVec

	// Pipeline metrics
	classifiedRecords      prometheus.Counter
	classificationWarnings *prometheus.CounterVec
	exportFiles            *prometheus.CounterVec
	reportRows             prometheus.Counter

	// Command metrics
	commandRuns     *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hpde",
		subsystem:        "cli",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.apiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_requests_total",
		Help:        "Total number of MSR API requests by resource and status class",
		ConstLabels: constLabels,
	}, []string{"resource", "status_class"})

	m.apiRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_request_duration_seconds",
		Help:        "MSR API request duration in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"resource"})

	m.apiRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_retries_total",
		Help:        "Total number of retried MSR API requests",
		ConstLabels: constLabels,
	}, []string{"resource"})

	m.apiErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_errors_total",
		Help:        "Total number of MSR API errors surfaced to callers by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.handshakes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "oauth_handshakes_total",
		Help:        "Total number of OAuth handshakes by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.handshakeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "oauth_handshake_duration_seconds",
		Help:        "Wall time of OAuth handshakes including user authorization",
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	m.tokenStoreOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "token_store_operations_total",
		Help:        "Token store operations by backend, operation and result",
		ConstLabels: constLabels,
	}, []string{"backend", "op", "result"})

	m.callbackRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "oauth_callback_requests_total",
		Help:        "Requests received by the OAuth callback listener by status class and error type",
		ConstLabels: constLabels,
	}, []string{"status_class", "error_type"})

	m.classifiedRecords = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "participation_records_total",
		Help:        "Total number of participation records produced by classification",
		ConstLabels: constLabels,
	})

	m.classificationWarnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "classification_warnings_total",
		Help:        "Classification warnings by kind (unknown class codes, drivers without days)",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.exportFiles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "export_files_written_total",
		Help:        "Export files written by format",
		ConstLabels: constLabels,
	}, []string{"format"})

	m.reportRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "report_rows_total",
		Help:        "Spreadsheet rows written to reports",
		ConstLabels: constLabels,
	})

	m.commandRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "command_runs_total",
		Help:        "CLI command runs by command and outcome",
		ConstLabels: constLabels,
	}, []string{"command", "outcome"})

	m.commandDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "command_duration_seconds",
		Help:        "Wall time of CLI commands",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"command"})
}

// RecordAPIRequest records one HTTP exchange with the MSR API.
func (m *Manager) RecordAPIRequest(resource string, status int, seconds float64) {
	if !m.enabled {
		return
	}
	m.apiRequests.WithLabelValues(resource, StatusClass(status)).Inc()
	m.apiRequestDuration.WithLabelValues(resource).Observe(seconds)
}

// RecordAPIRetry counts a retry of a request to resource.
func (m *Manager) RecordAPIRetry(resource string) {
	if !m.enabled {
		return
	}
	m.apiRetries.WithLabelValues(resource).Inc()
}

// RecordAPIError counts an error surfaced to the caller.
func (m *Manager) RecordAPIError(kind string) {
	if !m.enabled {
		return
	}
	m.apiErrors.WithLabelValues(kind).Inc()
}

// RecordHandshake records the outcome and duration of an OAuth handshake.
func (m *Manager) RecordHandshake(outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.handshakes.WithLabelValues(outcome).Inc()
	m.handshakeDuration.Observe(seconds)
}

// RecordTokenStoreOp records a token store operation.
func (m *Manager) RecordTokenStoreOp(backend, op, result string) {
	if !m.enabled {
		return
	}
	m.tokenStoreOps.WithLabelValues(backend, op, result).Inc()
}

// RecordCallbackRequest counts a request served by the callback listener.
func (m *Manager) RecordCallbackRequest(status int, errorType string) {
	if !m.enabled {
		return
	}
	m.callbackRequests.WithLabelValues(StatusClass(status), errorType).Inc()
}

// RecordClassification adds n produced participation records.
func (m *Manager) RecordClassification(n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.classifiedRecords.Add(float64(n))
}

// RecordClassificationWarning counts a classification warning.
func (m *Manager) RecordClassificationWarning(kind string) {
	if !m.enabled {
		return
	}
	m.classificationWarnings.WithLabelValues(kind).Inc()
}

// RecordExportFile counts a written export file.
func (m *Manager) RecordExportFile(format string) {
	if !m.enabled {
		return
	}
	m.exportFiles.WithLabelValues(format).Inc()
}

// RecordReportRows adds n rows written to a report.
func (m *Manager) RecordReportRows(n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.reportRows.Add(float64(n))
}

// RecordCommand records the outcome and duration of a CLI command.
func (m *Manager) RecordCommand(command, outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.commandRuns.WithLabelValues(command, outcome).Inc()
	m.commandDuration.WithLabelValues(command).Observe(seconds)
}

// StatusClass collapses an HTTP status into 2xx/3xx/4xx/5xx, or "error"
// when no response was received.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// Global wrappers around the singleton manager.

// RecordAPIRequest records one HTTP exchange with the MSR API.
func RecordAPIRequest(resource string, status int, seconds float64) {
	globalManager.RecordAPIRequest(resource, status, seconds)
}

// RecordAPIRetry counts a retry of a request to resource.
func RecordAPIRetry(resource string) { globalManager.RecordAPIRetry(resource) }

// RecordAPIError counts an error surfaced to the caller.
func RecordAPIError(kind string) { globalManager.RecordAPIError(kind) }

// RecordHandshake records the outcome and duration of an OAuth handshake.
func RecordHandshake(outcome string, seconds float64) {
	globalManager.RecordHandshake(outcome, seconds)
}

// RecordTokenStoreOp records a token store operation.
func RecordTokenStoreOp(backend, op, result string) {
	globalManager.RecordTokenStoreOp(backend, op, result)
}

// RecordCallbackRequest counts a request served by the callback listener.
func RecordCallbackRequest(status int, errorType string) {
	globalManager.RecordCallbackRequest(status, errorType)
}

// RecordClassification adds n produced participation records.
func RecordClassification(n int) { globalManager.RecordClassification(n) }

// RecordClassificationWarning counts a classification warning.
func RecordClassificationWarning(kind string) { globalManager.RecordClassificationWarning(kind) }

// RecordExportFile counts a written export file.
func RecordExportFile(format string) { globalManager.RecordExportFile(format) }

// RecordReportRows adds n rows written to a report.
func RecordReportRows(n int) { globalManager.RecordReportRows(n) }

// RecordCommand records a finished CLI command.
func RecordCommand(command, outcome string, seconds float64) {
	globalManager.RecordCommand(command, outcome, seconds)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current registry contents to path in the text
// exposition format, suitable for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
