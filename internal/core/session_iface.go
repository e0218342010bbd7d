package core

import (
	"sync"

	"github.com/dkeye/Harbor/internal/domain"
)

type SessionID string

// BoatSession binds a registered boat to its transport endpoint.
// This is what the registry stores under the boat id.
type BoatSession struct {
	ID           domain.BoatID
	SID          SessionID
	Capabilities domain.Capabilities

	signal SignalConnection

	mu    sync.RWMutex
	offer *domain.SessionDescription
}

func NewBoatSession(id domain.BoatID, sid SessionID, caps domain.Capabilities, sig SignalConnection) *BoatSession {
	return &BoatSession{ID: id, SID: sid, Capabilities: caps, signal: sig}
}

func (b *BoatSession) Signal() SignalConnection { return b.signal }

// Connected reports whether the boat transport is still open.
func (b *BoatSession) Connected() bool {
	return b.signal != nil && !b.signal.IsClosed()
}

// SetOffer overwrites the most recent boat-side description.
func (b *BoatSession) SetOffer(desc domain.SessionDescription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offer = &desc
}

func (b *BoatSession) CurrentOffer() (domain.SessionDescription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.offer == nil {
		return domain.SessionDescription{}, false
	}
	return *b.offer, true
}

func (b *BoatSession) Info() domain.BoatInfo {
	return domain.BoatInfo{BoatID: b.ID, Capabilities: b.Capabilities, Connected: b.Connected()}
}

// BrowserSession is a viewer connection. Identity is the session itself; the
// SID is generated per transport.
type BrowserSession struct {
	SID SessionID

	signal SignalConnection

	mu          sync.RWMutex
	bound       domain.BoatID
	passThrough bool
}

func NewBrowserSession(sid SessionID, sig SignalConnection) *BrowserSession {
	return &BrowserSession{SID: sid, signal: sig}
}

func (b *BrowserSession) Signal() SignalConnection { return b.signal }

// Bind sets the boat this browser talks to through a server relay. Last
// write wins.
func (b *BrowserSession) Bind(id domain.BoatID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = id
	b.passThrough = false
}

// BindPassThrough is Bind for a stream whose answer goes straight to the boat.
func (b *BrowserSession) BindPassThrough(id domain.BoatID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = id
	b.passThrough = true
}

// PassThrough reports whether the last bind was pass-through.
func (b *BrowserSession) PassThrough() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.passThrough
}

func (b *BrowserSession) BoundBoat() (domain.BoatID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bound, b.bound != ""
}
