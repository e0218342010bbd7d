package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "HARBOR"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Relay     RelayConfig     `mapstructure:"relay"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type RelayConfig struct {
	// Mode is server, passthrough or auto.
	Mode             string        `mapstructure:"mode"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type WebRTCConfig struct {
	ICEServers     []ICEServer   `mapstructure:"ice_servers"`
	ICEServersJSON string        `mapstructure:"ice_servers_json"`
	UDPPortMin     uint16        `mapstructure:"udp_port_min"`
	UDPPortMax     uint16        `mapstructure:"udp_port_max"`
	GatherTimeout  time.Duration `mapstructure:"gather_timeout"`
	PLIInterval    time.Duration `mapstructure:"pli_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "harbor-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("rate_limit.messages", 50)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("relay.mode", "auto")
	v.SetDefault("relay.handshake_timeout", "30s")
	v.SetDefault("webrtc.ice_servers_json", "")
	v.SetDefault("webrtc.udp_port_min", 0)
	v.SetDefault("webrtc.udp_port_max", 0)
	v.SetDefault("webrtc.gather_timeout", "2s")
	v.SetDefault("webrtc.pli_interval", "3s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"host":       "host",
	"port":       "port",
	"relay-mode": "relay.mode",
	"log-level":  "log_level",
}

// Load reads config/config.<env>.yaml, applies HARBOR_* environment overrides
// and then any flags set on flags. flags may be nil.
func Load(env string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("addr", cfg.Addr()).
		Str("relay_mode", cfg.Relay.Mode).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if (c.WebRTC.UDPPortMin == 0) != (c.WebRTC.UDPPortMax == 0) {
		errs = append(errs, errors.New("webrtc.udp_port_min and webrtc.udp_port_max must be set together"))
	} else if c.WebRTC.UDPPortMin > c.WebRTC.UDPPortMax {
		errs = append(errs, errors.New("webrtc.udp_port_min exceeds webrtc.udp_port_max"))
	}
	if c.PongWait > 0 && c.PingPeriod >= c.PongWait {
		errs = append(errs, errors.New("ping_period must be shorter than pong_wait"))
	}
	if _, err := c.ICEServers(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ICEServers merges webrtc.ice_servers and webrtc.ice_servers_json and
// validates them.
func (c *Config) ICEServers() ([]webrtc.ICEServer, error) {
	servers := c.WebRTC.ICEServers
	if raw := strings.TrimSpace(c.WebRTC.ICEServersJSON); raw != "" {
		extra, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("webrtc.ice_servers_json: %w", err)
		}
		servers = append(append([]ICEServer(nil), servers...), extra...)
	}
	return BuildICEServers(servers)
}
