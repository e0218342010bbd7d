package rtc

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
)

type Options struct {
	ICEServers    []webrtc.ICEServer
	UDPPortMin    uint16
	UDPPortMax    uint16
	GatherTimeout time.Duration
	// PLIInterval makes boat legs request a keyframe periodically. Zero keeps
	// the interceptor default.
	PLIInterval time.Duration
	// VideoMimeType is the codec browser legs offer before a boat track is attached.
	VideoMimeType string
	// OnPacket is called for every RTP packet forwarded to a browser.
	OnPacket func()
}

func (o Options) configuration() webrtc.Configuration {
	return webrtc.Configuration{ICEServers: o.ICEServers}
}

// NewAPI builds the pion API shared by every leg: default codecs and
// interceptors, periodic PLI on receivers and the configured UDP port range.
func NewAPI(opts Options) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	var pliOpts []intervalpli.GeneratorOption
	if opts.PLIInterval > 0 {
		pliOpts = append(pliOpts, intervalpli.GeneratorInterval(opts.PLIInterval))
	}
	pli, err := intervalpli.NewReceiverInterceptor(pliOpts...)
	if err != nil {
		return nil, fmt.Errorf("pli interceptor: %w", err)
	}
	ir.Add(pli)

	se := webrtc.SettingEngine{}
	if opts.UDPPortMin > 0 && opts.UDPPortMax > 0 {
		if err := se.SetEphemeralUDPPortRange(opts.UDPPortMin, opts.UDPPortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}
