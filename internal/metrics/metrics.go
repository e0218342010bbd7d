// Package metrics exposes relay and signaling counters to Prometheus. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harbor"

type Metrics struct {
	registry *prometheus.Registry

	ConnectedSessions   *prometheus.GaugeVec
	SignalMessages      *prometheus.CounterVec
	SignalErrors        *prometheus.CounterVec
	StreamRequests      *prometheus.CounterVec
	RelaySessionsActive prometheus.Gauge
	RelaySessionsClosed *prometheus.CounterVec
	RelaySetupDuration  prometheus.Histogram
	Commands            *prometheus.CounterVec
	PLIRequests         prometheus.Counter
	ForwardedPackets    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConnectedSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_sessions",
			Help:      "Registered signaling sessions by kind.",
		}, []string{"kind"}),
		SignalMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_messages_total",
			Help:      "Inbound signaling messages by channel and type.",
		}, []string{"channel", "type"}),
		SignalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_errors_total",
			Help:      "Error frames sent to peers by channel and error kind.",
		}, []string{"channel", "code"}),
		StreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_requests_total",
			Help:      "Stream requests by mode and outcome.",
		}, []string{"mode", "result"}),
		RelaySessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_sessions_active",
			Help:      "Server relay sessions not yet closed.",
		}),
		RelaySessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_sessions_closed_total",
			Help:      "Closed server relay sessions by reason.",
		}, []string{"reason"}),
		RelaySetupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_setup_duration_seconds",
			Help:      "Time from stream request to both legs connected.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Control commands routed to boats by type and outcome.",
		}, []string{"type", "result"}),
		PLIRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pli_requests_total",
			Help:      "Keyframe requests sent to boats.",
		}),
		ForwardedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rtp_packets_forwarded_total",
			Help:      "RTP packets forwarded from boat legs to browser legs.",
		}),
	}
	reg.MustRegister(
		m.ConnectedSessions,
		m.SignalMessages,
		m.SignalErrors,
		m.StreamRequests,
		m.RelaySessionsActive,
		m.RelaySessionsClosed,
		m.RelaySetupDuration,
		m.Commands,
		m.PLIRequests,
		m.ForwardedPackets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
