// Package coretest provides in-memory fakes of the core transport
// interfaces for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/Harbor/internal/core"
)

// Signal records every frame it is asked to send.
type Signal struct {
	mu      sync.Mutex
	frames  []core.Frame
	closed  bool
	SendErr error
}

func NewSignal() *Signal { return &Signal{} }

func (s *Signal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrConnectionClosed
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.frames = append(s.frames, append(core.Frame(nil), f...))
	return nil
}

func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Signal) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Signal) Frames() []core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Frame(nil), s.frames...)
}

// Messages decodes every recorded frame as a JSON object.
func (s *Signal) Messages() []map[string]any {
	var out []map[string]any
	for _, f := range s.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// OfType returns the decoded frames whose "type" equals typ.
func (s *Signal) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range s.Messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}
