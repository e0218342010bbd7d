package orch

import (
	"context"

	"github.com/dkeye/Harbor/internal/app"
	"github.com/dkeye/Harbor/internal/app/sfu"
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/metrics"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Orchestrator moves descriptions and commands between boats and browsers.
// Operations that have a dedicated reply (stream_response, command_response)
// send it themselves; the rest return an error for the transport to report.
type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	Relays   *sfu.RelayManager
	Commands *app.CommandRouter
	Metrics  *metrics.Metrics
}

func (o *Orchestrator) ListBoats(browser *core.BrowserSession) {
	if err := protocol.Send(browser.Signal(), protocol.NewBoatsAvailable(o.Registry.ListBoats())); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(browser.SID)).Msg("boats_available not sent")
	}
}

// Shutdown closes every relay session.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	if o.Relays != nil {
		o.Relays.CloseAll(ctx)
	}
}

// SendError reports err on sig as an error frame.
func (o *Orchestrator) SendError(sig core.SignalConnection, channel string, err error) {
	msg := err.Error()
	if protocol.IsInvalidJSON(err) {
		msg = "invalid json"
	}
	o.Metrics.Error(channel, domain.Code(err))
	if sendErr := protocol.Send(sig, protocol.NewError(msg)); sendErr != nil {
		log.Debug().Err(sendErr).Str("module", "orch").Str("channel", channel).Msg("error frame not sent")
	}
}

func toWebRTC(desc domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(desc.Type), SDP: desc.SDP}
}

func fromWebRTC(desc *webrtc.SessionDescription) domain.SessionDescription {
	return domain.SessionDescription{SDP: desc.SDP, Type: desc.Type.String()}
}
