package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a sliding-window limiter keyed by connection.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[core.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[core.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]

	// drop attempts that left the window
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	rl.history[sid] = append(fresh, now)
	return true
}

func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	delete(rl.history, sid)
	rl.mu.Unlock()
}

func (ctl *SignalWSController) allow(sid core.SessionID, c *WsSignalConn) bool {
	if ctl.limiter == nil || ctl.limiter.Allow(sid) {
		return true
	}
	log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited")
	ctl.Orch.Metrics.Error("signal", "RateLimited")
	_ = protocol.Send(c, protocol.NewError("rate limited"))
	return false
}
