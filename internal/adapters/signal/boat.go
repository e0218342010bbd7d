package signal

import (
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

// boatConn is the read goroutine's view of one boat transport. boat stays nil
// until boat_register.
type boatConn struct {
	sid  core.SessionID
	conn *WsSignalConn
	boat *core.BoatSession
}

func (ctl *SignalWSController) handleBoatFrame(bc *boatConn, data []byte) {
	msg, err := protocol.DecodeBoat(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(bc.sid)).Msg("bad boat frame")
		ctl.Orch.SendError(bc.conn, channelBoat, err)
		return
	}

	var typ string
	switch m := msg.(type) {
	case protocol.BoatRegister:
		typ = protocol.TypeBoatRegister
		if bc.boat != nil && bc.boat.ID != m.BoatID {
			// one transport serves one boat id at a time
			ctl.Orch.OnBoatDisconnect(bc.boat)
		}
		bc.boat = ctl.Orch.RegisterBoat(bc.sid, bc.conn, m)
	case protocol.BoatOffer:
		typ = protocol.TypeWebRTCOffer
		err = ctl.Orch.OnBoatOffer(bc.boat, m)
	case protocol.BoatAnswer:
		typ = protocol.TypeWebRTCAnswer
		err = ctl.Orch.OnBoatAnswer(bc.boat, m)
	case protocol.CommandResponse:
		typ = protocol.TypeCommandResponse
		err = ctl.Orch.OnCommandResponse(bc.boat, m)
	case protocol.Ping:
		typ = protocol.TypePing
		ctl.handlePing(bc.conn, m)
	}
	ctl.Orch.Metrics.Message(channelBoat, typ)

	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(bc.sid)).Str("type", typ).Msg("boat message rejected")
		ctl.Orch.SendError(bc.conn, channelBoat, err)
	}
}
