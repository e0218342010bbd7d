package http

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dkeye/Harbor/internal/adapters/signal"
	"github.com/dkeye/Harbor/internal/app/orch"
	"github.com/dkeye/Harbor/internal/config"
	"github.com/dkeye/Harbor/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenCookie = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags each viewer with a long-lived cookie token used
// to correlate its connections in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.SignalWSController, m *metrics.Metrics) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HarborSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{orch: o, handshakeTimeout: cfg.Relay.HandshakeTimeout}

	r.GET("/boat", func(c *gin.Context) {
		ctl.HandleBoat(ctx, c)
	})
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleBrowser(ctx, c)
	})
	r.POST("/offer", h.offer)
	r.GET("/boats", h.boats)
	r.GET("/healthz", h.healthz)

	if cfg.Metrics.Enabled && m != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(m.Handler()))
	}

	if info, err := os.Stat(cfg.StaticPath); err == nil && info.IsDir() {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
		log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("serving viewer")
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
