package sfu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/metrics"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ErrReplaced closes a relay session superseded by a newer request from the
// same browser.
var ErrReplaced = errors.New("relay replaced")

type Config struct {
	// HandshakeTimeout bounds the time to Connected. Zero disables it.
	HandshakeTimeout time.Duration
	InboxSize        int
}

// RelayManager owns every server relay session, at most one per browser SID.
type RelayManager struct {
	ctx     context.Context
	factory core.LegFactory
	cfg     Config
	metrics *metrics.Metrics

	mu       sync.RWMutex
	seq      uint64
	sessions map[core.SessionID]*RelaySession
}

func NewRelayManager(ctx context.Context, factory core.LegFactory, cfg Config, m *metrics.Metrics) *RelayManager {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 32
	}
	return &RelayManager{
		ctx:      ctx,
		factory:  factory,
		cfg:      cfg,
		metrics:  m,
		sessions: make(map[core.SessionID]*RelaySession),
	}
}

func (m *RelayManager) newSession(sid core.SessionID, boat *core.BoatSession, browser core.SignalConnection) *RelaySession {
	ctx, cancel := context.WithCancel(m.ctx)
	s := &RelaySession{
		SID:     sid,
		BoatID:  boat.ID,
		boat:    boat,
		browser: browser,
		started: time.Now(),
		timeout: m.cfg.HandshakeTimeout,
		inbox:   make(chan input, m.cfg.InboxSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger: log.With().
			Str("module", "sfu").
			Str("sid", string(sid)).
			Str("boat_id", string(boat.ID)).
			Logger(),
		metrics:  m.metrics,
		onClosed: m.remove,
	}

	m.mu.Lock()
	m.seq++
	s.seq = m.seq
	old := m.sessions[sid]
	m.sessions[sid] = s
	m.mu.Unlock()

	if old != nil {
		old.logger.Info().Msg("replacing relay for browser")
		old.post(closeInput{reason: ErrReplaced})
	}
	m.metrics.RelayOpened()
	return s
}

func (m *RelayManager) remove(s *RelaySession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.SID]; ok && cur == s {
		delete(m.sessions, s.SID)
	}
}

// StartStream creates both legs for browser and sends the boat its offer.
// The rest of the handshake runs asynchronously.
func (m *RelayManager) StartStream(browser *core.BrowserSession, boat *core.BoatSession) (*RelaySession, error) {
	s := m.newSession(browser.SID, boat, browser.Signal())
	if _, err := s.start(m.factory, nil); err != nil {
		s.teardown(err, false)
		return nil, err
	}
	go s.run()
	s.logger.Info().Msg("relay started")
	return s, nil
}

// AnswerOffer serves a browser that offered over HTTP: the browser leg answers
// synchronously and the boat side proceeds as for StartStream.
func (m *RelayManager) AnswerOffer(ctx context.Context, boat *core.BoatSession, offer webrtc.SessionDescription) (*webrtc.SessionDescription, *RelaySession, error) {
	sid := core.SessionID("http-" + uuid.NewString())
	s := m.newSession(sid, boat, nil)
	s.viaHTTP = true

	answer, err := s.start(m.factory, &offer)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", domain.ErrHandshakeTimeout, ctx.Err())
	}
	if err != nil {
		s.teardown(err, false)
		return nil, nil, err
	}
	go s.run()
	s.logger.Info().Msg("http relay started")
	return answer, s, nil
}

// OnBoatAnswer hands desc to the oldest session offered to boat that is
// still waiting for a boat answer.
func (m *RelayManager) OnBoatAnswer(boat *core.BoatSession, desc webrtc.SessionDescription) error {
	for {
		s := m.oldestAwaitingBoat(boat)
		if s == nil {
			return fmt.Errorf("%w: no relay awaiting boat %s", domain.ErrRelayTargetUnavailable, boat.ID)
		}
		if !s.claimed.CompareAndSwap(false, true) {
			continue
		}
		if s.post(boatAnswerInput{desc: desc}) {
			return nil
		}
	}
}

func (m *RelayManager) oldestAwaitingBoat(boat *core.BoatSession) *RelaySession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *RelaySession
	for _, s := range m.sessions {
		if s.boat != boat || s.State() != StateBoatOfferSent || s.claimed.Load() {
			continue
		}
		if oldest == nil || s.seq < oldest.seq {
			oldest = s
		}
	}
	return oldest
}

// AnswerOutcome says what became of a browser answer offered to the relays.
type AnswerOutcome int

const (
	// AnswerNoRelay means the browser has no relay session.
	AnswerNoRelay AnswerOutcome = iota
	// AnswerConsumed means the waiting relay session took the answer.
	AnswerConsumed
	// AnswerDropped means the browser has a relay session that was not
	// waiting for an answer, or that closed meanwhile.
	AnswerDropped
)

func (o AnswerOutcome) String() string {
	switch o {
	case AnswerConsumed:
		return "consumed"
	case AnswerDropped:
		return "dropped"
	default:
		return "no_relay"
	}
}

// OnBrowserAnswer consumes desc if the browser's relay session is waiting
// for it. Answers a relay session is not waiting for are dropped.
func (m *RelayManager) OnBrowserAnswer(sid core.SessionID, desc webrtc.SessionDescription) AnswerOutcome {
	s, ok := m.Get(sid)
	if !ok {
		return AnswerNoRelay
	}
	if st := s.State(); st != StateBrowserOfferSent {
		s.logger.Info().Str("state", st.String()).Msg("browser answer not awaited, dropped")
		return AnswerDropped
	}
	if !s.post(browserAnswerInput{desc: desc}) {
		return AnswerDropped
	}
	return AnswerConsumed
}

// CloseBrowser ends the relay of a browser that went away. The browser is not notified.
func (m *RelayManager) CloseBrowser(sid core.SessionID) {
	if s, ok := m.Get(sid); ok {
		s.post(closeInput{})
	}
}

// CloseBoat ends every relay that uses boat and notifies their browsers.
func (m *RelayManager) CloseBoat(boat *core.BoatSession) int {
	m.mu.RLock()
	victims := make([]*RelaySession, 0)
	for _, s := range m.sessions {
		if s.boat == boat {
			victims = append(victims, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range victims {
		s.post(closeInput{reason: domain.ErrBoatNotConnected, notify: true})
	}
	return len(victims)
}

func (m *RelayManager) Get(sid core.SessionID) (*RelaySession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	return s, ok
}

func (m *RelayManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears every session down and waits for them, bounded by ctx.
func (m *RelayManager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	all := make([]*RelaySession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.post(closeInput{})
	}
	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			log.Warn().Str("module", "sfu").Int("sessions", len(all)).Msg("relay shutdown interrupted")
			return
		}
	}
	log.Info().Str("module", "sfu").Int("sessions", len(all)).Msg("relays closed")
}
