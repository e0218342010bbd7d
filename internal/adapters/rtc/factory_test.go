package rtc

import (
	"testing"
	"time"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(Options{GatherTimeout: 500 * time.Millisecond})
	require.NoError(t, err)
	return f
}

func TestNewFactory_DefaultsToVP8(t *testing.T) {
	f := newTestFactory(t)
	assert.Equal(t, webrtc.MimeTypeVP8, f.opts.VideoMimeType)
}

func TestNewAPI_RejectsBadPortRange(t *testing.T) {
	_, err := NewAPI(Options{UDPPortMin: 6000, UDPPortMax: 5000})
	require.Error(t, err)
}

func TestBoatLeg_OffersRecvOnlyVideo(t *testing.T) {
	f := newTestFactory(t)
	leg, err := f.NewBoatLeg("s1")
	require.NoError(t, err)
	defer leg.Close()

	require.NoError(t, leg.Start(t.Context(), func(core.LegEvent) {}))
	offer, err := leg.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.Contains(t, offer.SDP, "m=video")
	assert.Contains(t, offer.SDP, "a=recvonly")
}

func TestBrowserLeg_OffersSendOnlyVideo(t *testing.T) {
	f := newTestFactory(t)
	leg, err := f.NewBrowserLeg("s1")
	require.NoError(t, err)
	defer leg.Close()

	require.NoError(t, leg.Start(t.Context(), func(core.LegEvent) {}))
	offer, err := leg.CreateOffer()
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "m=video")
	assert.Contains(t, offer.SDP, "a=sendonly")
	assert.Contains(t, offer.SDP, "VP8")
}

func TestBoatLeg_AnswersRemoteOffer(t *testing.T) {
	f := newTestFactory(t)
	browser, err := f.NewBrowserLeg("s1")
	require.NoError(t, err)
	defer browser.Close()
	boat, err := f.NewBoatLeg("s1")
	require.NoError(t, err)
	defer boat.Close()

	require.NoError(t, browser.Start(t.Context(), func(core.LegEvent) {}))
	require.NoError(t, boat.Start(t.Context(), func(core.LegEvent) {}))

	offer, err := browser.CreateOffer()
	require.NoError(t, err)
	answer, err := boat.ApplyOffer(*offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.NoError(t, browser.ApplyAnswer(*answer))
}

func TestBoatLeg_RequestKeyframeWithoutTrack(t *testing.T) {
	f := newTestFactory(t)
	leg, err := f.NewBoatLeg("s1")
	require.NoError(t, err)
	defer leg.Close()

	assert.ErrorIs(t, leg.RequestKeyframe(), ErrNoRemoteTrack)
}

func TestBoatLeg_AttachTrackNotSender(t *testing.T) {
	f := newTestFactory(t)
	leg, err := f.NewBoatLeg("s1")
	require.NoError(t, err)
	defer leg.Close()

	assert.ErrorIs(t, leg.AttachTrack(t.Context(), nil), ErrNotSender)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "boat", RoleBoat.String())
	assert.Equal(t, "browser", RoleBrowser.String())
}
