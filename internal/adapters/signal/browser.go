package signal

import (
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleBrowserFrame(browser *core.BrowserSession, data []byte) {
	msg, err := protocol.DecodeBrowser(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(browser.SID)).Msg("bad browser frame")
		ctl.Orch.SendError(browser.Signal(), channelBrowser, err)
		return
	}

	var typ string
	switch m := msg.(type) {
	case protocol.ListBoats:
		typ = protocol.TypeListBoats
		ctl.Orch.ListBoats(browser)
	case protocol.RequestStream:
		typ = protocol.TypeRequestStream
		// answered with stream_response
		_ = ctl.Orch.RequestStream(browser, m.BoatID)
	case protocol.BrowserAnswer:
		typ = protocol.TypeWebRTCAnswer
		err = ctl.Orch.OnBrowserAnswer(browser, m)
	case *protocol.Command:
		typ = m.Type
		// answered with command_response
		_ = ctl.Orch.RouteCommand(browser, m)
	case protocol.Ping:
		typ = protocol.TypePing
		ctl.handlePing(browser.Signal(), m)
	}
	ctl.Orch.Metrics.Message(channelBrowser, typ)

	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(browser.SID)).Str("type", typ).Msg("browser message rejected")
		ctl.Orch.SendError(browser.Signal(), channelBrowser, err)
	}
}
