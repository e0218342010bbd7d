package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("missing", nil)
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "auto", cfg.Relay.Mode)
	assert.Equal(t, 30*time.Second, cfg.Relay.HandshakeTimeout)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 50, cfg.RateLimit.Messages)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARBOR_PORT", "9001")
	t.Setenv("HARBOR_RELAY_MODE", "passthrough")
	t.Setenv("HARBOR_WEBRTC_ICE_SERVERS_JSON", `[{"urls":"stun:stun.example.com:3478"}]`)

	cfg, err := Load("missing", nil)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "passthrough", cfg.Relay.Mode)

	servers, err := cfg.ICEServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
}

func TestLoadFlagsWin(t *testing.T) {
	t.Setenv("HARBOR_PORT", "9001")
	flags := pflag.NewFlagSet("harbor", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("relay-mode", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7000", "--relay-mode", "passthrough"}))

	cfg, err := Load("missing", flags)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "passthrough", cfg.Relay.Mode)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Port: 8080, PingPeriod: time.Second, PongWait: 2 * time.Second}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "port")

	cfg = base()
	cfg.WebRTC.UDPPortMin = 5000
	assert.ErrorContains(t, cfg.Validate(), "set together")

	cfg = base()
	cfg.WebRTC.UDPPortMin, cfg.WebRTC.UDPPortMax = 6000, 5000
	assert.ErrorContains(t, cfg.Validate(), "exceeds")

	cfg = base()
	cfg.PingPeriod = 3 * time.Second
	assert.ErrorContains(t, cfg.Validate(), "ping_period")

	cfg = base()
	cfg.WebRTC.ICEServers = []ICEServer{{URLs: []string{"turn:turn.example.com"}}}
	assert.ErrorContains(t, cfg.Validate(), "username")
}
