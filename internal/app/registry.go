package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/rs/zerolog/log"
)

type boatEntry struct {
	seq     uint64
	Session *core.BoatSession
}

type Registry struct {
	mu       sync.RWMutex
	seq      uint64
	boats    map[domain.BoatID]*boatEntry
	browsers map[core.SessionID]*core.BrowserSession
}

func NewRegistry() *Registry {
	return &Registry{
		boats:    make(map[domain.BoatID]*boatEntry),
		browsers: make(map[core.SessionID]*core.BrowserSession),
	}
}

// RegisterBoat inserts or replaces the boat under id. The replaced session,
// if any, is returned so the caller can tear down what referenced it.
func (r *Registry) RegisterBoat(sess *core.BoatSession) (evicted *core.BoatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if old, ok := r.boats[sess.ID]; ok {
		evicted = old.Session
		log.Info().Str("module", "app.registry").Str("boat_id", string(sess.ID)).
			Str("old_sid", string(old.Session.SID)).Str("sid", string(sess.SID)).Msg("replaced boat")
	} else {
		log.Info().Str("module", "app.registry").Str("boat_id", string(sess.ID)).Str("sid", string(sess.SID)).Msg("registered boat")
	}
	r.boats[sess.ID] = &boatEntry{seq: r.seq, Session: sess}
	return evicted
}

func (r *Registry) UnregisterBoat(id domain.BoatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boats[id]; !ok {
		return
	}
	delete(r.boats, id)
	log.Info().Str("module", "app.registry").Str("boat_id", string(id)).Msg("unregistered boat")
}

// UnregisterBoatSession removes sess only while it is still the registered
// entry for its id. A replaced session closing late leaves the newer one alone.
func (r *Registry) UnregisterBoatSession(sess *core.BoatSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.boats[sess.ID]
	if !ok || e.Session != sess {
		return false
	}
	delete(r.boats, sess.ID)
	log.Info().Str("module", "app.registry").Str("boat_id", string(sess.ID)).Str("sid", string(sess.SID)).Msg("unregistered boat")
	return true
}

func (r *Registry) FindBoat(id domain.BoatID) (*core.BoatSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.boats[id]; ok {
		return e.Session, true
	}
	return nil, false
}

// ListBoats returns boats in registration order.
func (r *Registry) ListBoats() []domain.BoatInfo {
	r.mu.RLock()
	entries := make([]*boatEntry, 0, len(r.boats))
	for _, e := range r.boats {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]domain.BoatInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Session.Info())
	}
	return out
}

func (r *Registry) RegisterBrowser(sess *core.BrowserSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.browsers[sess.SID] = sess
	log.Info().Str("module", "app.registry").Str("sid", string(sess.SID)).Msg("registered browser")
}

func (r *Registry) UnregisterBrowser(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.browsers[sid]; !ok {
		return
	}
	delete(r.browsers, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered browser")
}

func (r *Registry) Browser(sid core.SessionID) (*core.BrowserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.browsers[sid]
	return b, ok
}

// BrowsersBoundTo snapshots the browsers currently bound to id.
func (r *Registry) BrowsersBoundTo(id domain.BoatID) []*core.BrowserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.BrowserSession, 0)
	for _, b := range r.browsers {
		if bound, ok := b.BoundBoat(); ok && bound == id {
			out = append(out, b)
		}
	}
	return out
}

func (r *Registry) Counts() (boats, browsers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.boats), len(r.browsers)
}
