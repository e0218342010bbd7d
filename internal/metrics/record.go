package metrics

import "time"

const (
	KindBoat    = "boat"
	KindBrowser = "browser"
)

func (m *Metrics) SessionOpened(kind string) {
	if m == nil {
		return
	}
	m.ConnectedSessions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionClosed(kind string) {
	if m == nil {
		return
	}
	m.ConnectedSessions.WithLabelValues(kind).Dec()
}

func (m *Metrics) Message(channel, typ string) {
	if m == nil {
		return
	}
	m.SignalMessages.WithLabelValues(channel, typ).Inc()
}

func (m *Metrics) Error(channel, code string) {
	if m == nil {
		return
	}
	m.SignalErrors.WithLabelValues(channel, code).Inc()
}

// StreamRequest counts one request_stream or /offer outcome. An empty code means success.
func (m *Metrics) StreamRequest(mode, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.StreamRequests.WithLabelValues(mode, code).Inc()
}

func (m *Metrics) RelayOpened() {
	if m == nil {
		return
	}
	m.RelaySessionsActive.Inc()
}

func (m *Metrics) RelayConnected(since time.Time) {
	if m == nil {
		return
	}
	m.RelaySetupDuration.Observe(time.Since(since).Seconds())
}

func (m *Metrics) RelayClosed(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "normal"
	}
	m.RelaySessionsActive.Dec()
	m.RelaySessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Command(typ, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.Commands.WithLabelValues(typ, code).Inc()
}

func (m *Metrics) PLI() {
	if m == nil {
		return
	}
	m.PLIRequests.Inc()
}

func (m *Metrics) Forwarded() {
	if m == nil {
		return
	}
	m.ForwardedPackets.Inc()
}
