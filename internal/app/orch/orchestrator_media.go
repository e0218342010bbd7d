package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Harbor/internal/app"
	"github.com/dkeye/Harbor/internal/app/sfu"
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) connectedBoat(id domain.BoatID) (*core.BoatSession, error) {
	boat, ok := o.Registry.FindBoat(id)
	if !ok {
		return nil, domain.ErrBoatNotFound
	}
	if !boat.Connected() {
		return nil, domain.ErrBoatNotConnected
	}
	return boat, nil
}

// RequestStream serves request_stream and always answers with stream_response.
// Pass-through forwards the boat's stored offer verbatim; server relay starts
// a two-leg relay session.
func (o *Orchestrator) RequestStream(browser *core.BrowserSession, boatID domain.BoatID) error {
	mode, err := o.requestStream(browser, boatID)
	o.Metrics.StreamRequest(mode.String(), domain.Code(err))

	logger := log.With().Str("module", "orch").Str("sid", string(browser.SID)).
		Str("boat_id", string(boatID)).Str("mode", mode.String()).Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("stream request failed")
	} else {
		logger.Info().Msg("stream requested")
	}
	if sendErr := protocol.Send(browser.Signal(), protocol.NewStreamResponse(boatID, err)); sendErr != nil {
		logger.Warn().Err(sendErr).Msg("stream_response not sent")
	}
	return err
}

func (o *Orchestrator) requestStream(browser *core.BrowserSession, boatID domain.BoatID) (app.StreamMode, error) {
	boat, err := o.connectedBoat(boatID)
	if err != nil {
		return app.ModeServerRelay, err
	}
	mode := o.Policy.StreamMode(boat)
	switch mode {
	case app.ModePassThrough:
		offer, ok := boat.CurrentOffer()
		if !ok {
			return mode, domain.ErrNoOfferAvailable
		}
		o.Relays.CloseBrowser(browser.SID)
		browser.BindPassThrough(boatID)
		if err := protocol.Send(browser.Signal(), protocol.NewWebRTCOffer(boatID, offer)); err != nil {
			return mode, fmt.Errorf("%w: %v", domain.ErrRelayTargetUnavailable, err)
		}
		return mode, nil
	default:
		if _, err := o.Relays.StartStream(browser, boat); err != nil {
			return mode, err
		}
		browser.Bind(boatID)
		return mode, nil
	}
}

// OnBrowserAnswer feeds a relay session waiting for this browser's answer.
// Only a browser served in pass-through has its answer forwarded to the boat;
// answers a relay did not ask for are dropped.
func (o *Orchestrator) OnBrowserAnswer(browser *core.BrowserSession, msg protocol.BrowserAnswer) error {
	logger := log.With().Str("module", "orch").Str("sid", string(browser.SID)).Logger()

	switch o.Relays.OnBrowserAnswer(browser.SID, toWebRTC(msg.Answer)) {
	case sfu.AnswerConsumed, sfu.AnswerDropped:
		return nil
	}

	bound, ok := browser.BoundBoat()
	if !browser.PassThrough() {
		if !ok {
			return fmt.Errorf("%w: no boat for answer", domain.ErrRelayTargetUnavailable)
		}
		// the relay this browser was bound to has ended
		logger.Info().Str("boat_id", string(bound)).Msg("browser answer without relay, dropped")
		return nil
	}

	target := msg.BoatID
	if target == "" {
		target = bound
	}
	boat, err := o.connectedBoat(target)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRelayTargetUnavailable, err)
	}
	if err := protocol.Send(boat.Signal(), protocol.NewWebRTCAnswer("", msg.Answer)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRelayTargetUnavailable, err)
	}
	logger.Info().Str("boat_id", string(target)).Msg("forwarded browser answer")
	return nil
}

func (o *Orchestrator) RouteCommand(browser *core.BrowserSession, cmd *protocol.Command) error {
	return o.Commands.Route(browser, cmd)
}

// AnswerHTTPOffer relays a browser that offered over HTTP and returns the
// server's answer for it.
func (o *Orchestrator) AnswerHTTPOffer(ctx context.Context, boatID domain.BoatID, offer domain.SessionDescription) (domain.SessionDescription, error) {
	answer, err := o.answerHTTPOffer(ctx, boatID, offer)
	o.Metrics.StreamRequest("http", domain.Code(err))
	return answer, err
}

func (o *Orchestrator) answerHTTPOffer(ctx context.Context, boatID domain.BoatID, offer domain.SessionDescription) (domain.SessionDescription, error) {
	boat, err := o.connectedBoat(boatID)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	answer, _, err := o.Relays.AnswerOffer(ctx, boat, toWebRTC(offer))
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromWebRTC(answer), nil
}
