// Package metrics exposes Prometheus instrumentation for a simulation run.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "ringnet"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics for the ring simulation.
type Metrics struct {
	// Client metrics
	ItemsSubmitted prometheus.Counter
	PayloadEmitted prometheus.Counter

	// Node metrics, labelled by node id
	RequestsExecuted  *prometheus.CounterVec
	PayloadCompleted  *prometheus.CounterVec
	ItemsForwarded    *prometheus.CounterVec
	ResponsesReceived *prometheus.CounterVec
	ForwardFailures   *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec

	// Topology metrics
	RingSize prometheus.Gauge
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		ItemsSubmitted: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "ringnet_client_items_submitted_total",
				Help: "Total number of work items submitted by the client",
			},
		),
		PayloadEmitted: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "ringnet_client_payload_emitted_total",
				Help: "Sum of payload values submitted by the client",
			},
		),
		RequestsExecuted: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringnet_node_requests_executed_total",
				Help: "Total number of requests executed by each node",
			},
			[]string{"node"},
		),
		PayloadCompleted: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringnet_node_payload_completed_total",
				Help: "Sum of payload values executed by each node",
			},
			[]string{"node"},
		),
		ItemsForwarded: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringnet_node_items_forwarded_total",
				Help: "Total number of items relayed onward by each node",
			},
			[]string{"node"},
		),
		ResponsesReceived: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringnet_node_responses_received_total",
				Help: "Total number of responses consumed at their destination node",
			},
			[]string{"node"},
		),
		ForwardFailures: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringnet_node_forward_failures_total",
				Help: "Total number of outbound sends that failed and stopped a worker",
			},
			[]string{"node"},
		),
		QueueDepth: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ringnet_node_queue_depth",
				Help: "Current depth of each node's internal completion queue",
			},
			[]string{"node"},
		),
		RingSize: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "ringnet_ring_size",
				Help: "Number of nodes in the ring",
			},
		),
	}
}

// NodeLabel renders a node id as a metric label value.
func NodeLabel(id int) string {
	return strconv.Itoa(id)
}

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
