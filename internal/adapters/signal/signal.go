package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Harbor/internal/app/orch"
	"github.com/dkeye/Harbor/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	channelBoat    = "boat"
	channelBrowser = "browser"
)

type Config struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
	RateMessages int
	RateInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:    1 << 20,
		PingPeriod:   54 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    5 * time.Second,
		SendBuffer:   32,
		RateMessages: 50,
		RateInterval: time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// SignalWSController serves the boat and browser WebSocket channels.
type SignalWSController struct {
	Orch    *orch.Orchestrator
	Config  Config
	limiter *RateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, cfg Config) *SignalWSController {
	cfg = cfg.withDefaults()
	ctl := &SignalWSController{Orch: o, Config: cfg}
	if cfg.RateMessages > 0 && cfg.RateInterval > 0 {
		ctl.limiter = NewRateLimiter(cfg.RateMessages, cfg.RateInterval)
	}
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WsSignalConn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) upgrade(c *gin.Context, channel string) (*WsSignalConn, core.SessionID, bool) {
	sid := core.SessionID(uuid.NewString())
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("channel", channel).Msg("ws upgrade")
		return nil, "", false
	}
	log.Info().
		Str("module", "signal").
		Str("channel", channel).
		Str("sid", string(sid)).
		Str("client", c.GetString("client_token")).
		Str("remote", c.ClientIP()).
		Msg("new WS connection")
	return newWsSignalConn(ws, ctl.Config.SendBuffer), sid, true
}

// HandleBoat upgrades a boat connection. The boat is unknown until it sends
// boat_register.
func (ctl *SignalWSController) HandleBoat(ctx context.Context, c *gin.Context) {
	conn, sid, ok := ctl.upgrade(c, channelBoat)
	if !ok {
		return
	}
	bc := &boatConn{sid: sid, conn: conn}
	ctl.Orch.Metrics.SessionOpened(channelBoat)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn, func(data []byte) {
		ctl.handleBoatFrame(bc, data)
	}, func() {
		ctl.Orch.OnBoatDisconnect(bc.boat)
		ctl.Orch.Metrics.SessionClosed(channelBoat)
	})
}

// HandleBrowser upgrades a viewer connection and sends it the boat list.
func (ctl *SignalWSController) HandleBrowser(ctx context.Context, c *gin.Context) {
	conn, sid, ok := ctl.upgrade(c, channelBrowser)
	if !ok {
		return
	}
	browser := ctl.Orch.OnBrowserConnect(sid, conn)
	ctl.Orch.Metrics.SessionOpened(channelBrowser)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn, func(data []byte) {
		ctl.handleBrowserFrame(browser, data)
	}, func() {
		ctl.Orch.OnBrowserDisconnect(browser)
		ctl.Orch.Metrics.SessionClosed(channelBrowser)
	})
}
