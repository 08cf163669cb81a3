// Package metrics exposes the SMSC's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smsc"

// Outcome labels for application-originated sends
const (
	A2PSent    = "sent"
	A2POffline = "offline"
)

// Metrics holds every collector on a private registry, so several relays
// can live in one process (tests) without duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived   *prometheus.CounterVec
	MalformedPackets  prometheus.Counter
	UnknownMethods    prometheus.Counter
	MessagesForwarded prometheus.Counter
	MessagesStored    prometheus.Counter
	StoreErrors       prometheus.Counter
	SendErrors        prometheus.Counter
	A2PMessages       *prometheus.CounterVec
	Registrations     prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Decoded SIP packets by method.",
		}, []string{"method"}),
		MalformedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_packets_total",
			Help:      "Datagrams dropped because they could not be decoded or lacked required headers.",
		}),
		UnknownMethods: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_method_packets_total",
			Help:      "Packets dropped because the method is not REGISTER or MESSAGE.",
		}),
		MessagesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_forwarded_total",
			Help:      "Peer MESSAGEs re-originated to a registered recipient.",
		}),
		MessagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_stored_total",
			Help:      "Peer MESSAGEs appended to an offline recipient's backlog.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Backlog appends that failed.",
		}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Outbound datagrams that failed to send.",
		}),
		A2PMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "a2p_messages_total",
			Help:      "Application-originated messages by outcome.",
		}, []string{"outcome"}),
		Registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registrations",
			Help:      "Identifiers currently bound in the directory.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PacketsReceived,
		m.MalformedPackets,
		m.UnknownMethods,
		m.MessagesForwarded,
		m.MessagesStored,
		m.StoreErrors,
		m.SendErrors,
		m.A2PMessages,
		m.Registrations,
	)

	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
