package orch

import (
	"fmt"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

var errNotRegistered = fmt.Errorf("%w: boat not registered", domain.ErrInvalidMessage)

// RegisterBoat binds sig to msg.BoatID, replacing any previous registration.
// Relays that used the replaced session are torn down.
func (o *Orchestrator) RegisterBoat(sid core.SessionID, sig core.SignalConnection, msg protocol.BoatRegister) *core.BoatSession {
	sess := core.NewBoatSession(msg.BoatID, sid, msg.Capabilities, sig)
	if evicted := o.Registry.RegisterBoat(sess); evicted != nil {
		if n := o.Relays.CloseBoat(evicted); n > 0 {
			log.Info().Str("module", "orch").Str("boat_id", string(msg.BoatID)).Int("relays", n).Msg("closed relays of replaced boat")
		}
	}
	if err := protocol.Send(sig, protocol.NewBoatRegistered(msg.BoatID)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("boat_id", string(msg.BoatID)).Msg("boat_registered not sent")
	}
	return sess
}

// OnBoatOffer stores the offer on the sending boat's own session.
func (o *Orchestrator) OnBoatOffer(boat *core.BoatSession, msg protocol.BoatOffer) error {
	if boat == nil {
		return errNotRegistered
	}
	if msg.BoatID != "" && msg.BoatID != boat.ID {
		return fmt.Errorf("%w: offer for %s from boat %s", domain.ErrInvalidMessage, msg.BoatID, boat.ID)
	}
	boat.SetOffer(msg.Offer)
	log.Info().Str("module", "orch").Str("boat_id", string(boat.ID)).Int("sdp_len", len(msg.Offer.SDP)).Msg("stored boat offer")
	return nil
}

// OnBoatAnswer delivers a boat's answer to the relay session waiting for it.
func (o *Orchestrator) OnBoatAnswer(boat *core.BoatSession, msg protocol.BoatAnswer) error {
	if boat == nil {
		return errNotRegistered
	}
	return o.Relays.OnBoatAnswer(boat, toWebRTC(msg.Answer))
}

func (o *Orchestrator) OnCommandResponse(boat *core.BoatSession, msg protocol.CommandResponse) error {
	if boat == nil {
		return errNotRegistered
	}
	o.Commands.RelayResponse(boat, msg)
	return nil
}

// OnBoatDisconnect unregisters boat unless it was already replaced, and ends
// every relay that used it.
func (o *Orchestrator) OnBoatDisconnect(boat *core.BoatSession) {
	if boat == nil {
		return
	}
	if !o.Registry.UnregisterBoatSession(boat) {
		log.Debug().Str("module", "orch").Str("boat_id", string(boat.ID)).Msg("stale boat transport closed")
	}
	o.Relays.CloseBoat(boat)
}
