package rtc

import (
	"fmt"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Factory creates pion-backed relay legs from one shared API.
type Factory struct {
	api  *webrtc.API
	opts Options
}

func NewFactory(opts Options) (*Factory, error) {
	if opts.VideoMimeType == "" {
		opts.VideoMimeType = webrtc.MimeTypeVP8
	}
	api, err := NewAPI(opts)
	if err != nil {
		return nil, err
	}
	return &Factory{api: api, opts: opts}, nil
}

func (f *Factory) newConnection(sid core.SessionID, role Role) (*WebRTCConnection, error) {
	pc, err := f.api.NewPeerConnection(f.opts.configuration())
	if err != nil {
		return nil, fmt.Errorf("peer connection: %w", err)
	}
	return &WebRTCConnection{
		pc:            pc,
		sid:           sid,
		role:          role,
		gatherTimeout: f.opts.GatherTimeout,
		onPacket:      f.opts.OnPacket,
	}, nil
}

// NewBoatLeg returns a leg that offers to receive one video track.
func (f *Factory) NewBoatLeg(sid core.SessionID) (core.MediaLeg, error) {
	c, err := f.newConnection(sid, RoleBoat)
	if err != nil {
		return nil, err
	}
	if _, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		_ = c.pc.Close()
		return nil, fmt.Errorf("video transceiver: %w", err)
	}
	return c, nil
}

// NewBrowserLeg returns a leg that sends one video track. It starts with a
// placeholder track so the offer carries a sendonly video section before the
// boat's track arrives.
func (f *Factory) NewBrowserLeg(sid core.SessionID) (core.MediaLeg, error) {
	c, err := f.newConnection(sid, RoleBrowser)
	if err != nil {
		return nil, err
	}
	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: f.opts.VideoMimeType},
		"video", "harbor-"+uuid.NewString(),
	)
	if err != nil {
		_ = c.pc.Close()
		return nil, fmt.Errorf("local track: %w", err)
	}
	tr, err := c.pc.AddTransceiverFromTrack(local, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		_ = c.pc.Close()
		return nil, fmt.Errorf("video transceiver: %w", err)
	}
	c.local = local
	c.sender = tr.Sender()
	return c, nil
}
