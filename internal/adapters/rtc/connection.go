package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Harbor/internal/app/sfu"
	"github.com/dkeye/Harbor/internal/core"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRemoteTrack = errors.New("no remote video track")
	ErrNotSender     = errors.New("leg does not send media")
)

type Role int

const (
	RoleBoat Role = iota
	RoleBrowser
)

func (r Role) String() string {
	if r == RoleBoat {
		return "boat"
	}
	return "browser"
}

// WebRTCConnection is one server-side peer connection. Boat legs receive
// video; browser legs send what a boat leg received.
type WebRTCConnection struct {
	pc            *webrtc.PeerConnection
	sid           core.SessionID
	role          Role
	gatherTimeout time.Duration
	onPacket      func()

	emit func(core.LegEvent)

	mu     sync.Mutex
	sender *webrtc.RTPSender
	local  *webrtc.TrackLocalStaticRTP
	remote *webrtc.TrackRemote
}

// Start wires engine callbacks. The leg lives until Close; ctx only scopes
// the relays started by AttachTrack.
func (c *WebRTCConnection) Start(_ context.Context, emit func(core.LegEvent)) error {
	c.emit = emit

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("sid", string(c.sid)).Str("leg", c.role.String()).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Str("leg", c.role.String()).Str("peer_connection_state", s.String()).Msg("Peer state")
		emit(core.StateEvent(s))
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("sid", string(c.sid)).
			Str("kind", track.Kind().String()).
			Str("codec", track.Codec().MimeType).
			Str("track_id", track.ID()).
			Msg("OnTrack received")
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		c.mu.Lock()
		c.remote = track
		c.mu.Unlock()
		emit(core.TrackEvent(track))
	})

	if c.sender != nil {
		go c.readRTCP(c.sender)
	}
	return nil
}

func (c *WebRTCConnection) waitGathering(done <-chan struct{}) {
	if c.gatherTimeout <= 0 {
		<-done
		return
	}
	t := time.NewTimer(c.gatherTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		log.Debug().Str("module", "webrtc").Str("sid", string(c.sid)).Dur("timeout", c.gatherTimeout).Msg("ICE gathering timed out, using partial candidates")
	}
}

func (c *WebRTCConnection) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	c.waitGathering(gatherComplete)
	return c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) ApplyOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	c.waitGathering(gatherComplete)
	return c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

// AttachTrack starts forwarding track out of this leg. The placeholder track
// is reused when codecs match, otherwise it is swapped for one that does.
func (c *WebRTCConnection) AttachTrack(ctx context.Context, track *webrtc.TrackRemote) error {
	if c.sender == nil {
		return ErrNotSender
	}
	codec := track.Codec().RTPCodecCapability

	c.mu.Lock()
	local := c.local
	if local == nil || local.Codec().MimeType != codec.MimeType {
		next, err := webrtc.NewTrackLocalStaticRTP(codec, track.ID(), track.StreamID())
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("local track: %w", err)
		}
		if err := c.sender.ReplaceTrack(next); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("replace track: %w", err)
		}
		local = next
		c.local = next
	}
	c.mu.Unlock()

	logger := log.With().
		Str("module", "webrtc").
		Str("sid", string(c.sid)).
		Str("track_id", track.ID()).
		Str("codec", codec.MimeType).
		Logger()
	relay := &sfu.TrackRelay{Src: track, Dst: local, OnPacket: c.onPacket}
	go func() {
		if err := relay.Run(ctx, &logger); err != nil {
			logger.Warn().Err(err).Msg("track relay stopped")
		}
	}()
	return nil
}

// readRTCP drains receiver feedback on a browser leg and surfaces keyframe
// requests.
func (c *WebRTCConnection) readRTCP(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range packets {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				c.emit(core.KeyframeRequestEvent())
			}
		}
	}
}

func (c *WebRTCConnection) RequestKeyframe() error {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()
	if remote == nil {
		return ErrNoRemoteTrack
	}
	return c.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
	})
}

func (c *WebRTCConnection) Close() error {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("sid", string(c.sid)).Str("leg", c.role.String()).Msg("close error")
		return err
	}
	log.Info().Str("module", "webrtc").Str("sid", string(c.sid)).Str("leg", c.role.String()).Msg("closed")
	return nil
}
