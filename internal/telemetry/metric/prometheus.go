package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventlink"

// Registry holds all application metrics on its own prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Link metrics
	LinkEvents        *prometheus.CounterVec // event: opened, closed, rejected, superseded
	HandshakeDuration prometheus.Histogram
	FramesSent        *prometheus.CounterVec // type: table, message
	FramesReceived    *prometheus.CounterVec

	// Message metrics
	MessagesDelivered prometheus.Counter
	MessagesForwarded prometheus.Counter
	MessagesDropped   *prometheus.CounterVec // reason: no_route, ttl_expired, duplicate, loop

	// Routing metrics
	PropagationRounds prometheus.Counter
	TablePushes       *prometheus.CounterVec // result: ok, failed
	TableMerges       *prometheus.CounterVec // result: changed, unchanged

	// Admin HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all EventLink metrics and the Go
// runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		LinkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_events_total",
			Help:      "Secure link lifecycle events.",
		}, []string{"event"}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time to establish an open link, TLS and hello exchange included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to secure links.",
		}, []string{"type"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames read from secure links.",
		}, []string{"type"}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages handed to the local message handler.",
		}),
		MessagesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_forwarded_total",
			Help:      "Message frames relayed to a next hop.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages or destinations dropped without delivery.",
		}, []string{"reason"}),
		PropagationRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_rounds_total",
			Help:      "Wake-ups of the routing propagation loop that pushed at least one table.",
		}),
		TablePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_pushes_total",
			Help:      "Routing table snapshots pushed to peers.",
		}, []string{"result"}),
		TableMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_merges_total",
			Help:      "Routing table snapshots merged from peers.",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_requests_total",
			Help:      "Admin HTTP requests.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admin_request_duration_seconds",
			Help:      "Admin HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.LinkEvents,
		r.HandshakeDuration,
		r.FramesSent,
		r.FramesReceived,
		r.MessagesDelivered,
		r.MessagesForwarded,
		r.MessagesDropped,
		r.PropagationRounds,
		r.TablePushes,
		r.TableMerges,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

// Register adds an extra collector, typically a Collector bound to a node.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// OrGlobal returns r, or the process-wide registry when r is nil.
func OrGlobal(r *Registry) *Registry {
	if r != nil {
		return r
	}
	return Global()
}

// Handler returns the /metrics handler of the process-wide registry.
func Handler() http.Handler {
	return Global().Handler()
}
