package coretest

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/pion/webrtc/v4"
)

// Leg is a scripted core.MediaLeg. Tests drive it through Emit.
type Leg struct {
	Name string

	mu             sync.Mutex
	emit           func(core.LegEvent)
	answers        []webrtc.SessionDescription
	appliedOffers  []webrtc.SessionDescription
	attached       []*webrtc.TrackRemote
	offers         int
	keyframes      int
	closed         int
	started        bool
	CreateOfferErr error
	ApplyErr       error
	StartErr       error
	ClosePanics    bool
}

func (l *Leg) Start(_ context.Context, emit func(core.LegEvent)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StartErr != nil {
		return l.StartErr
	}
	l.started = true
	l.emit = emit
	return nil
}

func (l *Leg) CreateOffer() (*webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CreateOfferErr != nil {
		return nil, l.CreateOfferErr
	}
	l.offers++
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 " + l.Name + " offer"}, nil
}

func (l *Leg) ApplyOffer(desc webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ApplyErr != nil {
		return nil, l.ApplyErr
	}
	l.appliedOffers = append(l.appliedOffers, desc)
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 " + l.Name + " answer"}, nil
}

func (l *Leg) ApplyAnswer(desc webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ApplyErr != nil {
		return l.ApplyErr
	}
	l.answers = append(l.answers, desc)
	return nil
}

func (l *Leg) AttachTrack(_ context.Context, track *webrtc.TrackRemote) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = append(l.attached, track)
	return nil
}

func (l *Leg) RequestKeyframe() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keyframes++
	return nil
}

func (l *Leg) Close() error {
	l.mu.Lock()
	l.closed++
	panics := l.ClosePanics
	l.mu.Unlock()
	if panics {
		panic("engine exploded")
	}
	return errors.New("already closed")
}

// Emit delivers ev as if the engine raised it.
func (l *Leg) Emit(ev core.LegEvent) {
	l.mu.Lock()
	emit := l.emit
	l.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

func (l *Leg) Connect() { l.Emit(core.StateEvent(webrtc.PeerConnectionStateConnected)) }

func (l *Leg) Fail() { l.Emit(core.StateEvent(webrtc.PeerConnectionStateFailed)) }

func (l *Leg) Offers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offers
}

func (l *Leg) Answers() []webrtc.SessionDescription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), l.answers...)
}

func (l *Leg) AppliedOffers() []webrtc.SessionDescription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), l.appliedOffers...)
}

func (l *Leg) Attached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attached)
}

func (l *Leg) Keyframes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keyframes
}

func (l *Leg) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Factory hands out fresh Legs and remembers them per session.
type Factory struct {
	mu       sync.Mutex
	boats    map[core.SessionID]*Leg
	browsers map[core.SessionID]*Leg
	order    []core.SessionID

	BoatErr error
	// Configure, if set, runs on every new leg before it is returned.
	Configure func(l *Leg)
}

func NewFactory() *Factory {
	return &Factory{
		boats:    make(map[core.SessionID]*Leg),
		browsers: make(map[core.SessionID]*Leg),
	}
}

func (f *Factory) NewBoatLeg(sid core.SessionID) (core.MediaLeg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BoatErr != nil {
		return nil, f.BoatErr
	}
	l := &Leg{Name: "boat"}
	if f.Configure != nil {
		f.Configure(l)
	}
	f.boats[sid] = l
	f.order = append(f.order, sid)
	return l, nil
}

func (f *Factory) NewBrowserLeg(sid core.SessionID) (core.MediaLeg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &Leg{Name: "browser"}
	if f.Configure != nil {
		f.Configure(l)
	}
	f.browsers[sid] = l
	return l, nil
}

func (f *Factory) BoatLeg(sid core.SessionID) *Leg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boats[sid]
}

func (f *Factory) BrowserLeg(sid core.SessionID) *Leg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.browsers[sid]
}

// Sessions lists session ids in the order their boat legs were created.
func (f *Factory) Sessions() []core.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.SessionID(nil), f.order...)
}
