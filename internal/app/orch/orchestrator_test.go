package orch

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Harbor/internal/app"
	"github.com/dkeye/Harbor/internal/app/sfu"
	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/core/coretest"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newOrchestrator(t *testing.T, policy app.Policy) (*Orchestrator, *coretest.Factory) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := app.NewRegistry()
	factory := coretest.NewFactory()
	return &Orchestrator{
		Registry: reg,
		Policy:   policy,
		Relays:   sfu.NewRelayManager(ctx, factory, sfu.Config{}, nil),
		Commands: app.NewCommandRouter(reg, nil),
	}, factory
}

func registerBoat(o *Orchestrator, id domain.BoatID, sid core.SessionID) (*core.BoatSession, *coretest.Signal) {
	sig := coretest.NewSignal()
	sess := o.RegisterBoat(sid, sig, protocol.BoatRegister{BoatID: id, Capabilities: domain.Capabilities{Video: true}})
	return sess, sig
}

func connectBrowser(o *Orchestrator, sid core.SessionID) (*core.BrowserSession, *coretest.Signal) {
	sig := coretest.NewSignal()
	return o.OnBrowserConnect(sid, sig), sig
}

var passThrough = app.StaticPolicy{Mode: app.ModePassThrough}

func TestRegisterBoatAcknowledges(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	_, sig := registerBoat(o, "b1", "s1")

	reg := sig.OfType(protocol.TypeBoatRegistered)
	require.Len(t, reg, 1)
	assert.Equal(t, "b1", reg[0]["boat_id"])
}

func TestBrowserConnectListsBoats(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	registerBoat(o, "b1", "s1")
	registerBoat(o, "b2", "s2")

	_, sig := connectBrowser(o, "w1")
	lists := sig.OfType(protocol.TypeBoatsAvailable)
	require.Len(t, lists, 1)
	boats := lists[0]["boats"].([]any)
	require.Len(t, boats, 2)
	assert.Equal(t, "b1", boats[0].(map[string]any)["boat_id"])
	assert.Equal(t, true, boats[0].(map[string]any)["connected"])
}

func TestPassThroughForwardsOfferVerbatim(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	boat, _ := registerBoat(o, "b1", "s1")
	sdp := "v=0\r\no=- 4611 2 IN IP4 127.0.0.1\r\ns=-\r\n"
	require.NoError(t, o.OnBoatOffer(boat, protocol.BoatOffer{BoatID: "b1", Offer: domain.NewOffer(sdp, "")}))

	browser, sig := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))

	offers := sig.OfType(protocol.TypeWebRTCOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, sdp, offers[0]["sdp"])
	assert.Equal(t, "b1", offers[0]["boat_id"])
	assert.Equal(t, "offer", offers[0]["offer_type"])

	bound, ok := browser.BoundBoat()
	require.True(t, ok)
	assert.Equal(t, domain.BoatID("b1"), bound)

	resp := sig.OfType(protocol.TypeStreamResponse)
	require.Len(t, resp, 1)
	assert.Equal(t, true, resp[0]["success"])
}

func TestRequestStreamFailures(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	browser, sig := connectBrowser(o, "w1")

	assert.ErrorIs(t, o.RequestStream(browser, "ghost"), domain.ErrBoatNotFound)

	registerBoat(o, "b1", "s1")
	assert.ErrorIs(t, o.RequestStream(browser, "b1"), domain.ErrNoOfferAvailable)

	_, boatSig := registerBoat(o, "b2", "s2")
	boatSig.Close()
	assert.ErrorIs(t, o.RequestStream(browser, "b2"), domain.ErrBoatNotConnected)

	resp := sig.OfType(protocol.TypeStreamResponse)
	require.Len(t, resp, 3)
	for _, r := range resp {
		assert.Equal(t, false, r["success"])
	}
	assert.Empty(t, sig.OfType(protocol.TypeWebRTCOffer))
	_, bound := browser.BoundBoat()
	assert.False(t, bound)
}

func TestBoatOfferRequiresRegistration(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	err := o.OnBoatOffer(nil, protocol.BoatOffer{BoatID: "b1", Offer: domain.NewOffer("v=0", "")})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	boat, _ := registerBoat(o, "b1", "s1")
	registerBoat(o, "b2", "s2")
	err = o.OnBoatOffer(boat, protocol.BoatOffer{BoatID: "b2", Offer: domain.NewOffer("v=0", "")})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	other, _ := o.Registry.FindBoat("b2")
	_, ok := other.CurrentOffer()
	assert.False(t, ok)
}

func TestOfferOverwritten(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	boat, _ := registerBoat(o, "b1", "s1")
	require.NoError(t, o.OnBoatOffer(boat, protocol.BoatOffer{Offer: domain.NewOffer("first", "")}))
	require.NoError(t, o.OnBoatOffer(boat, protocol.BoatOffer{Offer: domain.NewOffer("second", "")}))

	browser, sig := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	assert.Equal(t, "second", sig.OfType(protocol.TypeWebRTCOffer)[0]["sdp"])
}

func TestServerRelayFlow(t *testing.T) {
	o, factory := newOrchestrator(t, app.StaticPolicy{Mode: app.ModeServerRelay})
	boat, boatSig := registerBoat(o, "b1", "s1")
	browser, browserSig := connectBrowser(o, "w1")

	require.NoError(t, o.RequestStream(browser, "b1"))
	assert.Equal(t, true, browserSig.OfType(protocol.TypeStreamResponse)[0]["success"])
	require.Len(t, boatSig.OfType(protocol.TypeWebRTCOffer), 1)

	require.NoError(t, o.OnBoatAnswer(boat, protocol.BoatAnswer{Answer: domain.NewAnswer("boat-answer", "")}))
	factory.BoatLeg("w1").Connect()
	require.Eventually(t, func() bool { return len(browserSig.OfType(protocol.TypeWebRTCOffer)) == 1 }, waitFor, tick)

	s, ok := o.Relays.Get("w1")
	require.True(t, ok)
	require.Eventually(t, func() bool { return s.State() == sfu.StateBrowserOfferSent }, waitFor, tick)

	// Consumed by the relay, never forwarded to the boat.
	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("browser-answer", "")}))
	require.Eventually(t, func() bool { return s.State() == sfu.StateBrowserAnswered }, waitFor, tick)
	assert.Empty(t, boatSig.OfType(protocol.TypeWebRTCAnswer))
}

func TestBrowserAnswerForwardedWithoutRelay(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	_, boatSig := registerBoat(o, "b1", "s1")
	browser, _ := connectBrowser(o, "w1")

	err := o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("a", "")})
	assert.ErrorIs(t, err, domain.ErrRelayTargetUnavailable)

	browser.BindPassThrough("b1")
	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("sdp-a", "answer")}))
	answers := boatSig.OfType(protocol.TypeWebRTCAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "sdp-a", answers[0]["sdp"])
	assert.Equal(t, "answer", answers[0]["answer_type"])

	err = o.OnBrowserAnswer(browser, protocol.BrowserAnswer{BoatID: "gone", Answer: domain.NewAnswer("a", "")})
	assert.ErrorIs(t, err, domain.ErrRelayTargetUnavailable)
}

var serverRelay = app.StaticPolicy{Mode: app.ModeServerRelay}

func TestEarlyBrowserAnswerDropped(t *testing.T) {
	o, factory := newOrchestrator(t, serverRelay)
	_, boatSig := registerBoat(o, "b1", "s1")
	browser, _ := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	s, _ := o.Relays.Get("w1")
	require.Equal(t, sfu.StateBoatOfferSent, s.State())

	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("early", "")}))
	assert.Empty(t, boatSig.OfType(protocol.TypeWebRTCAnswer))
	assert.Empty(t, factory.BrowserLeg("w1").Answers())
	assert.Equal(t, sfu.StateBoatOfferSent, s.State())
}

func TestDuplicateBrowserAnswerDropped(t *testing.T) {
	o, factory := newOrchestrator(t, serverRelay)
	boat, boatSig := registerBoat(o, "b1", "s1")
	browser, _ := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	s, _ := o.Relays.Get("w1")

	require.NoError(t, o.OnBoatAnswer(boat, protocol.BoatAnswer{Answer: domain.NewAnswer("boat-answer", "")}))
	factory.BoatLeg("w1").Connect()
	require.Eventually(t, func() bool { return s.State() == sfu.StateBrowserOfferSent }, waitFor, tick)

	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("first", "")}))
	require.Eventually(t, func() bool { return s.State() == sfu.StateBrowserAnswered }, waitFor, tick)

	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("second", "")}))
	assert.Empty(t, boatSig.OfType(protocol.TypeWebRTCAnswer))
	assert.Len(t, factory.BrowserLeg("w1").Answers(), 1)
}

func TestBrowserAnswerAfterRelayClosedDropped(t *testing.T) {
	o, _ := newOrchestrator(t, serverRelay)
	_, boatSig := registerBoat(o, "b1", "s1")
	browser, _ := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))

	o.Relays.CloseBrowser("w1")
	require.Eventually(t, func() bool { return o.Relays.Len() == 0 }, waitFor, tick)

	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{Answer: domain.NewAnswer("late", "")}))
	require.NoError(t, o.OnBrowserAnswer(browser, protocol.BrowserAnswer{BoatID: "b1", Answer: domain.NewAnswer("late", "")}))
	assert.Empty(t, boatSig.OfType(protocol.TypeWebRTCAnswer))
}

func TestBoatAnswerWithoutRelay(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	boat, _ := registerBoat(o, "b1", "s1")

	err := o.OnBoatAnswer(boat, protocol.BoatAnswer{Answer: domain.NewAnswer("a", "")})
	assert.ErrorIs(t, err, domain.ErrRelayTargetUnavailable)
	assert.ErrorIs(t, o.OnBoatAnswer(nil, protocol.BoatAnswer{}), domain.ErrInvalidMessage)
}

func TestBoatDisconnectTearsDownRelays(t *testing.T) {
	o, _ := newOrchestrator(t, app.StaticPolicy{Mode: app.ModeServerRelay})
	boat, boatSig := registerBoat(o, "b1", "s1")
	browser, browserSig := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	s, _ := o.Relays.Get("w1")

	boatSig.Close()
	o.OnBoatDisconnect(boat)

	require.Eventually(t, func() bool { return s.State() == sfu.StateClosed }, waitFor, tick)
	_, ok := o.Registry.FindBoat("b1")
	assert.False(t, ok)

	resp := browserSig.OfType(protocol.TypeStreamResponse)
	require.Len(t, resp, 2)
	assert.Equal(t, false, resp[1]["success"])
}

func TestStaleBoatDisconnectKeepsReplacement(t *testing.T) {
	o, _ := newOrchestrator(t, app.StaticPolicy{Mode: app.ModeServerRelay})
	old, _ := registerBoat(o, "b1", "s1")
	browser, _ := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	s, _ := o.Relays.Get("w1")

	fresh, _ := registerBoat(o, "b1", "s2")
	require.Eventually(t, func() bool { return s.State() == sfu.StateClosed }, waitFor, tick)

	o.OnBoatDisconnect(old)
	got, ok := o.Registry.FindBoat("b1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestBrowserDisconnectClosesRelay(t *testing.T) {
	o, factory := newOrchestrator(t, app.StaticPolicy{Mode: app.ModeServerRelay})
	registerBoat(o, "b1", "s1")
	browser, browserSig := connectBrowser(o, "w1")
	require.NoError(t, o.RequestStream(browser, "b1"))
	s, _ := o.Relays.Get("w1")

	o.OnBrowserDisconnect(browser)
	require.Eventually(t, func() bool { return s.State() == sfu.StateClosed }, waitFor, tick)
	assert.Equal(t, 1, factory.BoatLeg("w1").Closed())
	assert.Len(t, browserSig.OfType(protocol.TypeStreamResponse), 1)

	_, ok := o.Registry.Browser("w1")
	assert.False(t, ok)
}

func TestCommandRoundTrip(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	boat, boatSig := registerBoat(o, "b1", "s1")
	w1, sig1 := connectBrowser(o, "w1")
	_, sig2 := connectBrowser(o, "w2")
	w1.Bind("b1")

	msg, err := protocol.DecodeBrowser([]byte(`{"type":"led_control","state":"blink"}`))
	require.NoError(t, err)
	require.NoError(t, o.RouteCommand(w1, msg.(*protocol.Command)))
	require.Len(t, boatSig.OfType(protocol.TypeLEDControl), 1)
	require.Len(t, sig1.OfType(protocol.TypeCommandResponse), 1)

	require.NoError(t, o.OnCommandResponse(boat, protocol.CommandResponse{CommandType: "led_control", Success: true}))
	assert.Len(t, sig1.OfType(protocol.TypeCommandResponse), 2)
	assert.Empty(t, sig2.OfType(protocol.TypeCommandResponse))
}

func TestAnswerHTTPOffer(t *testing.T) {
	o, _ := newOrchestrator(t, app.StaticPolicy{Mode: app.ModeServerRelay})
	_, err := o.AnswerHTTPOffer(context.Background(), "ghost", domain.NewOffer("x", ""))
	assert.ErrorIs(t, err, domain.ErrBoatNotFound)

	_, boatSig := registerBoat(o, "b1", "s1")
	answer, err := o.AnswerHTTPOffer(context.Background(), "b1", domain.NewOffer("browser-offer", ""))
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)
	assert.Equal(t, "v=0 browser answer", answer.SDP)
	assert.Len(t, boatSig.OfType(protocol.TypeWebRTCOffer), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o.Shutdown(ctx)
	require.Eventually(t, func() bool { return o.Relays.Len() == 0 }, waitFor, tick)
}

func TestSendErrorInvalidJSON(t *testing.T) {
	o, _ := newOrchestrator(t, passThrough)
	sig := coretest.NewSignal()
	_, err := protocol.DecodeBoat([]byte("{oops"))
	o.SendError(sig, "boat", err)

	frames := sig.OfType(protocol.TypeError)
	require.Len(t, frames, 1)
	assert.Equal(t, "invalid json", frames[0]["message"])
}
