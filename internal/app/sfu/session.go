package sfu

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/metrics"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type legKind int

const (
	boatSide legKind = iota
	browserSide
)

func (k legKind) String() string {
	if k == boatSide {
		return "boat"
	}
	return "browser"
}

type input interface{ isInput() }

type boatAnswerInput struct{ desc webrtc.SessionDescription }

type browserAnswerInput struct{ desc webrtc.SessionDescription }

type legEventInput struct {
	leg legKind
	ev  core.LegEvent
}

type closeInput struct {
	reason error
	notify bool
}

func (boatAnswerInput) isInput()    {}
func (browserAnswerInput) isInput() {}
func (legEventInput) isInput()      {}
func (closeInput) isInput()         {}

// RelaySession drives the two legs of one server relay stream. A single
// goroutine owns the handshake; everything else posts to its inbox.
type RelaySession struct {
	SID    core.SessionID
	BoatID domain.BoatID

	boat       *core.BoatSession
	browser    core.SignalConnection // nil when the browser offered over HTTP
	boatLeg    core.MediaLeg
	browserLeg core.MediaLeg
	viaHTTP    bool

	seq     uint64
	started time.Time
	timeout time.Duration

	state   atomic.Int32
	claimed atomic.Bool
	inbox   chan input
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	// Owned by the actor goroutine.
	boatConnected    bool
	browserConnected bool

	// Written once before done is closed.
	reason error

	logger   zerolog.Logger
	metrics  *metrics.Metrics
	onClosed func(*RelaySession)
}

func (s *RelaySession) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches StateClosed.
func (s *RelaySession) Done() <-chan struct{} { return s.done }

// Err returns why the session closed. Only meaningful after Done.
func (s *RelaySession) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

func (s *RelaySession) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.logger.Debug().Str("from", prev.String()).Str("state", st.String()).Msg("relay state")
}

// post hands in to the actor. Inputs arriving after close are dropped.
func (s *RelaySession) post(in input) bool {
	select {
	case <-s.done:
		s.logger.Debug().Str("input", fmt.Sprintf("%T", in)).Msg("relay closed, input dropped")
		return false
	default:
	}
	select {
	case s.inbox <- in:
		return true
	case <-s.done:
		s.logger.Debug().Str("input", fmt.Sprintf("%T", in)).Msg("relay closed, input dropped")
		return false
	}
}

func (s *RelaySession) emitter(leg legKind) func(core.LegEvent) {
	return func(ev core.LegEvent) {
		s.post(legEventInput{leg: leg, ev: ev})
	}
}

// start creates both legs and sends the boat its offer. For HTTP sessions the
// browser offer is applied first and its answer returned.
func (s *RelaySession) start(factory core.LegFactory, browserOffer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	var err error
	if s.boatLeg, err = factory.NewBoatLeg(s.SID); err != nil {
		return nil, fmt.Errorf("%w: boat leg: %v", domain.ErrLegSetupFailed, err)
	}
	if s.browserLeg, err = factory.NewBrowserLeg(s.SID); err != nil {
		return nil, fmt.Errorf("%w: browser leg: %v", domain.ErrLegSetupFailed, err)
	}
	s.setState(StateLegsCreated)

	if err := s.boatLeg.Start(s.ctx, s.emitter(boatSide)); err != nil {
		return nil, fmt.Errorf("%w: start boat leg: %v", domain.ErrLegSetupFailed, err)
	}
	if err := s.browserLeg.Start(s.ctx, s.emitter(browserSide)); err != nil {
		return nil, fmt.Errorf("%w: start browser leg: %v", domain.ErrLegSetupFailed, err)
	}

	var answer *webrtc.SessionDescription
	if browserOffer != nil {
		if answer, err = s.browserLeg.ApplyOffer(*browserOffer); err != nil {
			return nil, fmt.Errorf("%w: apply browser offer: %v", domain.ErrLegSetupFailed, err)
		}
	}

	offer, err := s.boatLeg.CreateOffer()
	if err != nil {
		return nil, fmt.Errorf("%w: boat offer: %v", domain.ErrLegSetupFailed, err)
	}
	desc := domain.NewOffer(offer.SDP, offer.Type.String())
	if err := protocol.Send(s.boat.Signal(), protocol.NewWebRTCOffer(s.BoatID, desc)); err != nil {
		return nil, fmt.Errorf("%w: send boat offer: %v", domain.ErrBoatNotConnected, err)
	}
	s.setState(StateBoatOfferSent)
	return answer, nil
}

func (s *RelaySession) run() {
	var timeout <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		timeout = t.C
	}
	for {
		select {
		case in := <-s.inbox:
			s.handle(in)
		case <-timeout:
			s.logger.Warn().Str("state", s.State().String()).Dur("after", s.timeout).Msg("relay handshake timeout")
			s.teardown(domain.ErrHandshakeTimeout, true)
		case <-s.ctx.Done():
			s.teardown(nil, false)
		}
		switch s.State() {
		case StateClosed:
			return
		case StateConnected:
			timeout = nil
		}
	}
}

func (s *RelaySession) handle(in input) {
	switch in := in.(type) {
	case boatAnswerInput:
		s.onBoatAnswer(in.desc)
	case browserAnswerInput:
		s.onBrowserAnswer(in.desc)
	case legEventInput:
		s.onLegEvent(in.leg, in.ev)
	case closeInput:
		s.teardown(in.reason, in.notify)
	}
}

func (s *RelaySession) onBoatAnswer(desc webrtc.SessionDescription) {
	if st := s.State(); st != StateBoatOfferSent {
		s.logger.Warn().Str("state", st.String()).Msg("unexpected boat answer dropped")
		return
	}
	if err := s.boatLeg.ApplyAnswer(desc); err != nil {
		s.teardown(fmt.Errorf("%w: apply boat answer: %v", domain.ErrLegSetupFailed, err), true)
		return
	}
	s.setState(StateBoatAnswered)
	if s.boatConnected {
		s.onBoatConnected()
	}
}

func (s *RelaySession) onBrowserAnswer(desc webrtc.SessionDescription) {
	if st := s.State(); st != StateBrowserOfferSent {
		s.logger.Warn().Str("state", st.String()).Msg("unexpected browser answer dropped")
		return
	}
	if err := s.browserLeg.ApplyAnswer(desc); err != nil {
		s.teardown(fmt.Errorf("%w: apply browser answer: %v", domain.ErrLegSetupFailed, err), true)
		return
	}
	s.setState(StateBrowserAnswered)
	s.maybeConnected()
}

func (s *RelaySession) onLegEvent(leg legKind, ev core.LegEvent) {
	switch ev.Kind {
	case core.LegEventTrack:
		if leg != boatSide || ev.Track == nil {
			s.logger.Debug().Str("leg", leg.String()).Msg("ignoring track")
			return
		}
		if err := s.browserLeg.AttachTrack(s.ctx, ev.Track); err != nil {
			s.teardown(fmt.Errorf("%w: attach track: %v", domain.ErrLegSetupFailed, err), true)
			return
		}
		s.logger.Info().Str("track_id", ev.Track.ID()).Str("kind", ev.Track.Kind().String()).Msg("boat track attached")
	case core.LegEventState:
		s.logger.Debug().Str("leg", leg.String()).Str("peer_connection_state", ev.State.String()).Msg("leg state")
		switch ev.State {
		case webrtc.PeerConnectionStateConnected:
			if leg == boatSide {
				s.boatConnected = true
				s.onBoatConnected()
			} else {
				s.browserConnected = true
				s.maybeConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.teardown(fmt.Errorf("%w: %s leg %s", domain.ErrLegSetupFailed, leg, ev.State), true)
		}
	case core.LegEventKeyframeRequest:
		if leg != browserSide || !s.boatConnected {
			return
		}
		if err := s.boatLeg.RequestKeyframe(); err != nil {
			s.logger.Debug().Err(err).Msg("keyframe relay failed")
			return
		}
		s.metrics.PLI()
	}
}

// onBoatConnected offers to the browser exactly once, on the first boat
// connect after the boat answered.
func (s *RelaySession) onBoatConnected() {
	if s.State() != StateBoatAnswered {
		return
	}
	if s.viaHTTP {
		s.setState(StateBrowserAnswered)
		s.maybeConnected()
		return
	}
	offer, err := s.browserLeg.CreateOffer()
	if err != nil {
		s.teardown(fmt.Errorf("%w: browser offer: %v", domain.ErrLegSetupFailed, err), true)
		return
	}
	desc := domain.NewOffer(offer.SDP, offer.Type.String())
	if err := protocol.Send(s.browser, protocol.NewWebRTCOffer(s.BoatID, desc)); err != nil {
		s.teardown(fmt.Errorf("%w: send browser offer: %v", domain.ErrRelayTargetUnavailable, err), false)
		return
	}
	s.setState(StateBrowserOfferSent)
}

func (s *RelaySession) maybeConnected() {
	if s.State() != StateBrowserAnswered || !s.browserConnected || !s.boatConnected {
		return
	}
	s.setState(StateConnected)
	s.metrics.RelayConnected(s.started)
	s.logger.Info().Dur("setup", time.Since(s.started)).Msg("relay connected")
	if err := s.boatLeg.RequestKeyframe(); err != nil {
		s.logger.Debug().Err(err).Msg("keyframe request failed")
		return
	}
	s.metrics.PLI()
}

// teardown closes both legs and, when notify is set, tells the browser why.
// StateClosed is published last so observers see a fully released session.
func (s *RelaySession) teardown(reason error, notify bool) {
	select {
	case <-s.done:
		return
	default:
	}
	s.reason = reason
	close(s.done)
	s.cancel()

	safeClose(s.browserLeg, browserSide, &s.logger)
	safeClose(s.boatLeg, boatSide, &s.logger)

	if notify && reason != nil && s.browser != nil {
		if err := protocol.Send(s.browser, protocol.NewStreamResponse(s.BoatID, reason)); err != nil {
			s.logger.Debug().Err(err).Msg("stream failure not delivered")
		}
	}
	code := domain.Code(reason)
	if errors.Is(reason, ErrReplaced) {
		code = "Replaced"
	}
	s.metrics.RelayClosed(code)
	ev := s.logger.Info()
	if reason != nil {
		ev = s.logger.Warn().Err(reason).Str("code", code)
	}
	ev.Msg("relay closed")

	if s.onClosed != nil {
		s.onClosed(s)
	}
	s.setState(StateClosed)
}

// safeClose releases a leg. Engine errors and panics are logged, never propagated.
func safeClose(leg core.MediaLeg, kind legKind, logger *zerolog.Logger) {
	if leg == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("leg", kind.String()).Interface("panic", r).Msg("leg close panicked")
		}
	}()
	if err := leg.Close(); err != nil {
		logger.Warn().Err(err).Str("leg", kind.String()).Msg("leg close error")
	}
}
