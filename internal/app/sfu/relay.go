package sfu

import (
	"context"
	"errors"
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// RTPSource is the read side of a remote track.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RTPSink is the write side of a local track.
type RTPSink interface {
	WriteRTP(*rtp.Packet) error
}

// TrackRelay copies RTP packets from a boat track into a browser track.
type TrackRelay struct {
	Src RTPSource
	Dst RTPSink
	// OnPacket, if set, is called after each forwarded packet.
	OnPacket func()
}

// Run forwards until ctx is done, the source ends or the sink fails.
// A source that ends with io.EOF is a normal stop.
func (r *TrackRelay) Run(ctx context.Context, logger *zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("track relay ctx done")
			return nil
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug().Msg("track relay source ended")
				return nil
			}
			logger.Warn().Err(err).Msg("track relay read RTP error, stopping")
			return err
		}
		if err := r.Dst.WriteRTP(pkt); err != nil {
			// No bound browser transport yet.
			if errors.Is(err, io.ErrClosedPipe) {
				continue
			}
			logger.Warn().Err(err).Msg("track relay write RTP error, stopping")
			return err
		}
		if r.OnPacket != nil {
			r.OnPacket()
		}
	}
}
