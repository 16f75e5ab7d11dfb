// Package metrics provides Prometheus metrics for the property rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Coordinator lifecycle, labelled by operation kind (create, submit, refresh)
	operationsStarted   *prometheus.CounterVec
	operationsDropped   *prometheus.CounterVec
	operationsCommitted *prometheus.CounterVec
	operationsStale     *prometheus.CounterVec
	operationsFailed    *prometheus.CounterVec
	operationLatency    *prometheus.HistogramVec
	operationsInFlight  *prometheus.GaugeVec
	projectsCached      prometheus.Gauge
	projectFetches      prometheus.Counter

	// Encryption
	encryptCalls      *prometheus.CounterVec
	encryptFailures   prometheus.Counter
	instanceCreations *prometheus.CounterVec

	// Statistics and decryption signatures
	statisticsServed    prometheus.Counter
	statisticsFallbacks *prometheus.CounterVec
	signatureCache      *prometheus.CounterVec

	// Wallet
	walletEvents  *prometheus.CounterVec
	walletChainID prometheus.Gauge

	// Wallet event queue and reconciler
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueue            prometheus.Counter
	queueDequeue            prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
	idempotentReplays   prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fheprop",
		subsystem:        "client",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.operationsStarted = m.counterVec("operations_started_total", "Operations that acquired their in-flight slot", "kind")
	m.operationsDropped = m.counterVec("operations_dropped_total", "Operations dropped because one of the same kind was in flight", "kind")
	m.operationsCommitted = m.counterVec("operations_committed_total", "Operations whose result was committed to session state", "kind")
	m.operationsStale = m.counterVec("operations_stale_total", "Operations discarded because the binding changed while they were pending", "kind")
	m.operationsFailed = m.counterVec("operations_failed_total", "Operations that failed", "kind", "reason")
	m.operationLatency = m.histogramVec("operation_duration_milliseconds", "Operation duration in milliseconds", "kind", "outcome")
	m.operationsInFlight = m.gaugeVec("operations_in_flight", "Whether an operation of the kind is in flight (0 or 1)", "kind")
	m.projectsCached = m.gauge("projects_cached", "Projects held in session state for the current binding")
	m.projectFetches = m.counter("project_fetches_total", "getProjectInfo calls issued by refresh")

	m.encryptCalls = m.counterVec("encrypt_calls_total", "Encrypted input generations by rating dimension", "dimension")
	m.encryptFailures = m.counter("encrypt_failures_total", "Encrypted input generations that failed")
	m.instanceCreations = m.counterVec("encryption_instance_creations_total", "Encryption instance creations by result", "result")

	m.statisticsServed = m.counter("statistics_served_total", "Decrypted statistics returned to callers")
	m.statisticsFallbacks = m.counterVec("statistics_fallbacks_total", "Placeholder statistics returned instead of decrypted values", "reason")
	m.signatureCache = m.counterVec("decryption_signature_cache_total", "Decryption signature lookups by result", "result")

	m.walletEvents = m.counterVec("wallet_events_total", "Wallet events published by the connector", "type")
	m.walletChainID = m.gauge("wallet_chain_id", "Chain id currently reported by the wallet")

	m.queueSize = m.gauge("queue_size", "Current size of the wallet event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum wallet event queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Wallet events enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Wallet events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Wallet events rejected by a full or closed queue")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Reconciler latency per wallet event", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Wallet events whose reconciliation failed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.rateLimited = m.counterVec("http_rate_limited_total", "Write requests rejected by the rate limiter", "endpoint")
	m.idempotentReplays = m.counter("http_idempotent_replays_total", "Write requests rejected as replays of an idempotency key")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Coordinator.

// RecordOperationStarted counts an operation that acquired its slot and marks it in flight.
func RecordOperationStarted(kind string) {
	globalManager.operationsStarted.WithLabelValues(kind).Inc()
	globalManager.operationsInFlight.WithLabelValues(kind).Set(1)
}

// RecordOperationFinished clears the in-flight gauge and records latency by outcome.
func RecordOperationFinished(kind, outcome string, latencyMs float64) {
	globalManager.operationsInFlight.WithLabelValues(kind).Set(0)
	globalManager.operationLatency.WithLabelValues(kind, outcome).Observe(latencyMs)
}

// RecordOperationDropped counts a call rejected by single-flight.
func RecordOperationDropped(kind string) {
	globalManager.operationsDropped.WithLabelValues(kind).Inc()
}

// RecordOperationCommitted counts a committed result.
func RecordOperationCommitted(kind string) {
	globalManager.operationsCommitted.WithLabelValues(kind).Inc()
}

// RecordOperationStale counts a result discarded by the stale guard.
func RecordOperationStale(kind string) {
	globalManager.operationsStale.WithLabelValues(kind).Inc()
}

// RecordOperationFailed counts a failed operation.
func RecordOperationFailed(kind, reason string) {
	globalManager.operationsFailed.WithLabelValues(kind, reason).Inc()
}

// UpdateProjectsCached sets the number of cached projects.
func UpdateProjectsCached(count int) {
	globalManager.projectsCached.Set(float64(count))
}

// RecordProjectFetch counts one getProjectInfo call.
func RecordProjectFetch() {
	globalManager.projectFetches.Inc()
}

// Encryption.

// RecordEncryptCall counts one encrypted input generation for a dimension.
func RecordEncryptCall(dimension string) {
	globalManager.encryptCalls.WithLabelValues(dimension).Inc()
}

// RecordEncryptFailure counts a failed encrypted input generation.
func RecordEncryptFailure() {
	globalManager.encryptFailures.Inc()
}

// RecordInstanceCreation counts an encryption instance creation ("ready", "aborted", "failed").
func RecordInstanceCreation(result string) {
	globalManager.instanceCreations.WithLabelValues(result).Inc()
}

// Statistics.

// RecordStatisticsServed counts decrypted statistics.
func RecordStatisticsServed() {
	globalManager.statisticsServed.Inc()
}

// RecordStatisticsFallback counts a placeholder result.
func RecordStatisticsFallback(reason string) {
	globalManager.statisticsFallbacks.WithLabelValues(reason).Inc()
}

// RecordSignatureCache counts a signature lookup ("hit", "miss", "expired").
func RecordSignatureCache(result string) {
	globalManager.signatureCache.WithLabelValues(result).Inc()
}

// Wallet.

// RecordWalletEvent counts a published wallet event.
func RecordWalletEvent(eventType string) {
	globalManager.walletEvents.WithLabelValues(eventType).Inc()
}

// UpdateWalletChainID sets the wallet chain id gauge.
func UpdateWalletChainID(chainID uint64) {
	globalManager.walletChainID.Set(float64(chainID))
}

// Queue and worker.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordWorkerProcessingLatency records reconciler latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordRateLimited counts a throttled write request.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordIdempotentReplay counts a rejected idempotency-key replay.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
