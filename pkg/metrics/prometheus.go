// Package metrics provides Prometheus metrics for the coherence engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus instruments for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Store instruments
	observationsAppended prometheus.Counter
	observationsRejected *prometheus.CounterVec
	storeObservations    prometheus.Gauge
	storeSignals         prometheus.Gauge
	storePruneRemoved    prometheus.Counter
	storeAppendLatency   prometheus.Histogram
	storeQueryLatency    prometheus.Histogram

	// Compute instruments
	computeDuration   prometheus.Histogram
	snapshotsComputed prometheus.Counter
	computeErrors     prometheus.Counter

	// HTTP instruments
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Ingest pipeline instruments
	queueDepth         prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// Upstream client instruments
	ingestPages   prometheus.Counter
	ingestRetries prometheus.Counter
	ingestRecords prometheus.Counter
	ingestErrors  prometheus.Counter
	ingestLatency prometheus.Histogram

	// Stream instruments
	streamClients    prometheus.Gauge
	streamBroadcasts prometheus.Counter
	streamDropped    prometheus.Counter

	// History instruments
	historyRows   prometheus.Counter
	historyErrors prometheus.Counter

	// Sentry instruments
	incidentsEmitted *prometheus.CounterVec
	sentryRuns       *prometheus.CounterVec

	// Cross-cutting error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with the given options applied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coherence",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus instruments.
func (m *Manager) initializeMetrics() { //nolint:funlen // registration of every instrument lives here
	auto := promauto.With(m.registry)

	m.observationsAppended = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_appended_total",
		Help:      "Total number of observations appended to the rolling store",
	})

	m.observationsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "observations_rejected_total",
			Help:      "Total number of observations rejected by the rolling store, by reason",
		},
		[]string{"reason"},
	)

	m.storeObservations = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_observations",
		Help:      "Current number of observations held by the rolling store",
	})

	m.storeSignals = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_signals",
		Help:      "Current number of distinct signals tracked by the rolling store",
	})

	m.storePruneRemoved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_prune_removed_total",
		Help:      "Total number of observations removed by prune passes",
	})

	m.storeAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_append_latency_milliseconds",
		Help:      "Rolling store append latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Rolling store window query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.computeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_duration_milliseconds",
		Help:      "Snapshot computation duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.snapshotsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_computed_total",
		Help:      "Total number of metrics snapshots computed",
	})

	m.computeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_errors_total",
		Help:      "Total number of snapshot computations that failed validation",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current number of observations waiting in the ingest queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum ingest queue capacity",
	})

	m.queueEnqueueTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of observations enqueued",
	})

	m.queueDequeueTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of observations dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue failures (queue full or closed)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of running ingest workers",
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of unexpected ingest worker failures",
	})

	m.ingestPages = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_pages_fetched_total",
		Help:      "Total number of upstream pages fetched",
	})

	m.ingestRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_retries_total",
		Help:      "Total number of upstream fetch retries",
	})

	m.ingestRecords = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_records_total",
		Help:      "Total number of upstream records ingested",
	})

	m.ingestErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_errors_total",
		Help:      "Total number of upstream fetch failures",
	})

	m.ingestLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_latency_milliseconds",
		Help:      "Upstream fetch latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.streamClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_clients",
		Help:      "Current number of connected websocket clients",
	})

	m.streamBroadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_broadcasts_total",
		Help:      "Total number of snapshots broadcast to stream clients",
	})

	m.streamDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_dropped_total",
		Help:      "Total number of stream messages dropped on slow clients",
	})

	m.historyRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_rows_written_total",
		Help:      "Total number of snapshot rows appended to the history store",
	})

	m.historyErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_errors_total",
		Help:      "Total number of history store failures",
	})

	m.incidentsEmitted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "incidents_emitted_total",
			Help:      "Total number of incident artifacts written, by highest level",
		},
		[]string{"level"},
	)

	m.sentryRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sentry_runs_total",
			Help:      "Total number of sentry runs, by outcome",
		},
		[]string{"outcome"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)
}

// Store metrics functions.

// RecordObservationAppended increments the appended observations counter.
func RecordObservationAppended() {
	globalManager.observationsAppended.Inc()
}

// RecordObservationRejected increments the rejected observations counter
// for a reason (duplicate, out_of_order, validation).
func RecordObservationRejected(reason string) {
	globalManager.observationsRejected.WithLabelValues(reason).Inc()
}

// UpdateStoreObservations sets the current stored observation count.
func UpdateStoreObservations(count int) {
	globalManager.storeObservations.Set(float64(count))
}

// UpdateStoreSignals sets the current tracked signal count.
func UpdateStoreSignals(count int) {
	globalManager.storeSignals.Set(float64(count))
}

// RecordStorePruneRemoved adds the number of observations a prune removed.
func RecordStorePruneRemoved(count int) {
	globalManager.storePruneRemoved.Add(float64(count))
}

// RecordStoreAppendLatency records append latency in milliseconds.
func RecordStoreAppendLatency(latencyMs float64) {
	globalManager.storeAppendLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records window query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// Compute metrics functions.

// RecordComputeDuration records snapshot computation duration in milliseconds.
func RecordComputeDuration(durationMs float64) {
	globalManager.computeDuration.Observe(durationMs)
}

// RecordSnapshotComputed increments the computed snapshots counter.
func RecordSnapshotComputed() {
	globalManager.snapshotsComputed.Inc()
}

// RecordComputeError increments the failed computations counter.
func RecordComputeError() {
	globalManager.computeErrors.Inc()
}

// HTTP metrics functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Ingest pipeline metrics functions.

// UpdateQueueDepth sets the current ingest queue depth.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// UpdateQueueCapacity sets the maximum ingest queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue failure counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running ingest workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the unexpected worker failure counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Upstream client metrics functions.

// RecordIngestPage increments the fetched pages counter.
func RecordIngestPage() {
	globalManager.ingestPages.Inc()
}

// RecordIngestRetry increments the fetch retries counter.
func RecordIngestRetry() {
	globalManager.ingestRetries.Inc()
}

// RecordIngestRecords adds the number of records one fetch returned.
func RecordIngestRecords(count int) {
	globalManager.ingestRecords.Add(float64(count))
}

// RecordIngestError increments the fetch failure counter.
func RecordIngestError() {
	globalManager.ingestErrors.Inc()
}

// RecordIngestLatency records one fetch's latency in milliseconds.
func RecordIngestLatency(latencyMs float64) {
	globalManager.ingestLatency.Observe(latencyMs)
}

// Stream metrics functions.

// UpdateStreamClients sets the connected websocket client count.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// RecordStreamBroadcast increments the broadcast counter.
func RecordStreamBroadcast() {
	globalManager.streamBroadcasts.Inc()
}

// RecordStreamDropped increments the dropped message counter.
func RecordStreamDropped() {
	globalManager.streamDropped.Inc()
}

// History metrics functions.

// RecordHistoryRowWritten increments the history rows counter.
func RecordHistoryRowWritten() {
	globalManager.historyRows.Inc()
}

// RecordHistoryError increments the history failure counter.
func RecordHistoryError() {
	globalManager.historyErrors.Inc()
}

// Sentry metrics functions.

// RecordIncidentEmitted increments the emitted incidents counter for the
// highest level present in the incident.
func RecordIncidentEmitted(level string) {
	globalManager.incidentsEmitted.WithLabelValues(level).Inc()
}

// RecordSentryRun increments the sentry run counter for an outcome
// (no_finding, incident_emitted, failed).
func RecordSentryRun(outcome string) {
	globalManager.sentryRuns.WithLabelValues(outcome).Inc()
}

// Cross-cutting error tracking.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
