// Package instrument holds the Prometheus metrics of a single node.
//
// Every node owns its own registry so that several nodes can run in one
// process (see package network). A nil *Metrics is valid and records
// nothing, which is how metrics.enabled=false is implemented.
package instrument

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a relay drops a delivery.
const (
	DropCrypto      = "crypto"
	DropRateLimited = "rate_limited"
	DropInvalid     = "invalid"
	DropForward     = "forward_failed"
)

// Metrics is the set of counters exported by one node.
type Metrics struct {
	registry *prometheus.Registry

	deliveries       prometheus.Counter
	peeled           prometheus.Counter
	dropped          *prometheus.CounterVec
	forwarded        prometheus.Counter
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	registrations    *prometheus.CounterVec
	registered       *prometheus.GaugeVec
}

// New creates the metrics of the node identified by role and id.
func New(role string, id int) *Metrics {
	labels := prometheus.Labels{"role": role, "id": strconv.Itoa(id)}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "goonion_deliveries_total",
			Help:        "Number of Deliver requests received",
			ConstLabels: labels,
		}),
		peeled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "goonion_layers_peeled_total",
			Help:        "Number of onion layers successfully removed",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "goonion_deliveries_dropped_total",
			Help:        "Number of deliveries dropped, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "goonion_forwards_total",
			Help:        "Number of payloads forwarded to the next hop",
			ConstLabels: labels,
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "goonion_messages_sent_total",
			Help:        "Number of messages sent into a circuit",
			ConstLabels: labels,
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "goonion_messages_received_total",
			Help:        "Number of plaintext messages received",
			ConstLabels: labels,
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "goonion_registrations_total",
			Help:        "Number of directory registrations, by kind and result",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		registered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "goonion_registered",
			Help:        "Number of records held by the directory, by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.deliveries,
		m.peeled,
		m.dropped,
		m.forwarded,
		m.messagesSent,
		m.messagesReceived,
		m.registrations,
		m.registered,
	)
	return m
}

// Handler serves the registry in the Prometheus text format. It returns nil
// for a nil *Metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DeliveryReceived() {
	if m != nil {
		m.deliveries.Inc()
	}
}

func (m *Metrics) LayerPeeled() {
	if m != nil {
		m.peeled.Inc()
	}
}

func (m *Metrics) DeliveryDropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Forwarded() {
	if m != nil {
		m.forwarded.Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) MessageReceived() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

// Registration counts a directory registration of kind ("node" or "user").
func (m *Metrics) Registration(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.registrations.WithLabelValues(kind, result).Inc()
}

// SetRegistered records the number of records of kind held by the directory.
func (m *Metrics) SetRegistered(kind string, n int) {
	if m != nil {
		m.registered.WithLabelValues(kind).Set(float64(n))
	}
}
