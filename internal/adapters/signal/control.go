package signal

import (
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(conn core.SignalConnection, msg protocol.Ping) {
	if err := protocol.Send(conn, protocol.NewPong(msg.Data)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("pong not sent")
	}
}
