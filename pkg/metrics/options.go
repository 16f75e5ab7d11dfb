package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace prefixes every metric name; empty keeps "fheprop".
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the second name segment; empty keeps "client".
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces the millisecond buckets shared by the operation,
// HTTP and reconciler latency histograms. Chains with slow blocks want wider ones.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithDeployment labels every metric with the deployment and the mock chain it pins.
func WithDeployment(name string, mockChainID uint64) Option {
	return func(m *Manager) {
		if name == "" {
			return
		}
		m.constLabels = prometheus.Labels{
			"deployment":    name,
			"mock_chain_id": strconv.FormatUint(mockChainID, 10),
		}
	}
}

// WithRegisterer registers collectors on reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}
