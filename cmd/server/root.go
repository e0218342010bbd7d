package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Harbor/internal/adapters/http"
	"github.com/dkeye/Harbor/internal/adapters/rtc"
	wssignal "github.com/dkeye/Harbor/internal/adapters/signal"
	"github.com/dkeye/Harbor/internal/app"
	"github.com/dkeye/Harbor/internal/app/orch"
	"github.com/dkeye/Harbor/internal/app/sfu"
	"github.com/dkeye/Harbor/internal/config"
	"github.com/dkeye/Harbor/internal/metrics"
)

var configEnv string

var rootCmd = &cobra.Command{
	Use:          "harbor",
	Short:        "Signaling and media relay between boats and browser viewers",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configEnv, "config-env", "", "config profile, reads config/config.<env>.yaml (default $CONFIG_ENV or dev)")
	f.String("host", "", "listen host")
	f.Int("port", 0, "listen port")
	f.String("relay-mode", "", "server, passthrough or auto")
	f.String("log-level", "", "debug, info, warn or error")
}

func setupLogger(mode, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if mode == "debug" || mode == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// console output until the config says otherwise
	setupLogger("dev", "info")

	cfg, err := config.Load(configEnv, cmd.Flags())
	if err != nil {
		return err
	}
	setupLogger(cfg.Mode, cfg.LogLevel)

	iceServers, err := cfg.ICEServers()
	if err != nil {
		return err
	}
	policy, err := app.NewPolicy(cfg.Relay.Mode, len(iceServers) > 0)
	if err != nil {
		return err
	}

	m := metrics.New()
	factory, err := rtc.NewFactory(rtc.Options{
		ICEServers:    iceServers,
		UDPPortMin:    cfg.WebRTC.UDPPortMin,
		UDPPortMax:    cfg.WebRTC.UDPPortMax,
		GatherTimeout: cfg.WebRTC.GatherTimeout,
		PLIInterval:   cfg.WebRTC.PLIInterval,
		OnPacket:      m.Forwarded,
	})
	if err != nil {
		return err
	}

	reg := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry: reg,
		Policy:   policy,
		Relays: sfu.NewRelayManager(ctx, factory, sfu.Config{
			HandshakeTimeout: cfg.Relay.HandshakeTimeout,
		}, m),
		Commands: app.NewCommandRouter(reg, m),
		Metrics:  m,
	}
	ctl := wssignal.NewSignalWSController(o, wssignal.Config{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendBuffer:   cfg.SendBuffer,
		RateMessages: cfg.RateLimit.Messages,
		RateInterval: cfg.RateLimit.Interval,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupRouter(ctx, cfg, o, ctl, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("relay_mode", cfg.Relay.Mode).Msg("Harbor server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
		return err
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Shutdown(shutdownCtx)
	log.Info().Msg("Server exited gracefully")
	return nil
}
