package app

import (
	"fmt"
	"strings"

	"github.com/dkeye/Harbor/internal/core"
)

// StreamMode selects how a request_stream is served.
type StreamMode int

const (
	// ModeServerRelay terminates both legs on the server and forwards RTP.
	ModeServerRelay StreamMode = iota
	// ModePassThrough hands the boat's stored offer to the browser.
	ModePassThrough
)

func (m StreamMode) String() string {
	switch m {
	case ModeServerRelay:
		return "server"
	case ModePassThrough:
		return "passthrough"
	}
	return fmt.Sprintf("StreamMode(%d)", int(m))
}

type Policy interface {
	StreamMode(boat *core.BoatSession) StreamMode
}

// StaticPolicy always answers with the same mode.
type StaticPolicy struct {
	Mode StreamMode
}

func (p StaticPolicy) StreamMode(*core.BoatSession) StreamMode { return p.Mode }

// AutoPolicy prefers pass-through when peers can reach each other through the
// configured ICE servers and the boat has something to hand over.
type AutoPolicy struct {
	HasICEServers bool
}

func (p AutoPolicy) StreamMode(boat *core.BoatSession) StreamMode {
	if !p.HasICEServers || boat == nil {
		return ModeServerRelay
	}
	if _, ok := boat.CurrentOffer(); !ok {
		return ModeServerRelay
	}
	return ModePassThrough
}

// NewPolicy builds the policy for a relay.mode value: server, passthrough or auto.
func NewPolicy(mode string, hasICEServers bool) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "server", "relay":
		return StaticPolicy{Mode: ModeServerRelay}, nil
	case "passthrough", "pass-through", "direct":
		return StaticPolicy{Mode: ModePassThrough}, nil
	case "auto", "":
		return AutoPolicy{HasICEServers: hasICEServers}, nil
	}
	return nil, fmt.Errorf("unknown relay mode %q", mode)
}
