package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// LegEvent is a typed notification from the WebRTC engine about one leg.
// Track and State are meaningful for their own Kind only.
type LegEvent struct {
	Kind  LegEventKind
	Track *webrtc.TrackRemote
	State webrtc.PeerConnectionState
}

type LegEventKind int

const (
	LegEventTrack LegEventKind = iota
	LegEventState
	// LegEventKeyframeRequest means the remote receiver asked for a keyframe (PLI/FIR).
	LegEventKeyframeRequest
)

func TrackEvent(t *webrtc.TrackRemote) LegEvent {
	return LegEvent{Kind: LegEventTrack, Track: t}
}

func StateEvent(s webrtc.PeerConnectionState) LegEvent {
	return LegEvent{Kind: LegEventState, State: s}
}

func KeyframeRequestEvent() LegEvent {
	return LegEvent{Kind: LegEventKeyframeRequest}
}

// MediaLeg is one server-owned peer connection in server-relay mode.
type MediaLeg interface {
	// Start configures engine callbacks and binds the leg lifetime to ctx.
	// Events are delivered to emit until Close.
	Start(ctx context.Context, emit func(LegEvent)) error
	// CreateOffer creates and sets a local offer and returns it once ICE
	// gathering is done (or its timeout hits).
	CreateOffer() (*webrtc.SessionDescription, error)
	// ApplyOffer sets a remote offer and returns the local answer.
	ApplyOffer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	ApplyAnswer(webrtc.SessionDescription) error
	// AttachTrack forwards a remote track from another leg out of this one.
	AttachTrack(ctx context.Context, track *webrtc.TrackRemote) error
	// RequestKeyframe asks the remote sender for a fresh keyframe.
	RequestKeyframe() error
	Close() error
}

// LegFactory creates engine legs. Boat legs receive video, browser legs send it.
type LegFactory interface {
	NewBoatLeg(sid SessionID) (MediaLeg, error)
	NewBrowserLeg(sid SessionID) (MediaLeg, error)
}
