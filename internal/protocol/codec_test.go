package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Harbor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBoatRegister(t *testing.T) {
	msg, err := DecodeBoat([]byte(`{"type":"boat_register","boat_id":" b1 ","capabilities":{"video":true,"width":640,"height":480,"fps":30}}`))
	require.NoError(t, err)

	reg, ok := msg.(BoatRegister)
	require.True(t, ok)
	assert.Equal(t, domain.BoatID("b1"), reg.BoatID)
	assert.Equal(t, domain.Capabilities{Video: true, Width: 640, Height: 480, FPS: 30}, reg.Capabilities)
}

func TestDecodeBoatRegisterMissingID(t *testing.T) {
	_, err := DecodeBoat([]byte(`{"type":"boat_register"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	assert.False(t, IsInvalidJSON(err))
}

func TestDecodeBoatOfferDefaultsType(t *testing.T) {
	msg, err := DecodeBoat([]byte(`{"type":"webrtc_offer","boat_id":"b1","sdp":"v=0"}`))
	require.NoError(t, err)

	offer := msg.(BoatOffer)
	assert.Equal(t, domain.BoatID("b1"), offer.BoatID)
	assert.Equal(t, domain.SessionDescription{SDP: "v=0", Type: "offer"}, offer.Offer)
}

func TestDecodeBoatAnswerMissingSDP(t *testing.T) {
	_, err := DecodeBoat([]byte(`{"type":"webrtc_answer","boat_id":"b1"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestDecodeBoatCommandResponse(t *testing.T) {
	msg, err := DecodeBoat([]byte(`{"type":"command_response","command_type":"led_control","success":false,"error":"gpio busy","result":{"x":1}}`))
	require.NoError(t, err)

	resp := msg.(CommandResponse)
	assert.Equal(t, domain.BoatID(""), resp.BoatID)
	assert.Equal(t, "led_control", resp.CommandType)
	assert.False(t, resp.Success)
	assert.Equal(t, "gpio busy", resp.Error)
	assert.JSONEq(t, `{"x":1}`, string(resp.Result))
}

func TestDecodeInvalidJSON(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2]`, `"str"`, `null`, ``} {
		_, err := DecodeBoat([]byte(raw))
		assert.True(t, IsInvalidJSON(err), raw)

		_, err = DecodeBrowser([]byte(raw))
		assert.True(t, IsInvalidJSON(err), raw)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodeBoat([]byte(`{"type":"list_boats"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	assert.Contains(t, err.Error(), "unknown type")

	_, err = DecodeBrowser([]byte(`{"type":"boat_register","boat_id":"b1"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = DecodeBrowser([]byte(`{"boat_id":"b1"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestDecodeBrowserRequestStream(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"request_stream","boat_id":"b1"}`))
	require.NoError(t, err)
	assert.Equal(t, RequestStream{BoatID: "b1"}, msg)

	_, err = DecodeBrowser([]byte(`{"type":"request_stream"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestDecodeBrowserListAndPing(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"list_boats"}`))
	require.NoError(t, err)
	assert.Equal(t, ListBoats{}, msg)

	msg, err = DecodeBrowser([]byte(`{"type":"ping","data":{"n":3}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(msg.(Ping).Data))
}

func TestCommandFrameInjectsBoatID(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"motor_control","speed":0.5,"direction":"left"}`))
	require.NoError(t, err)

	cmd, ok := msg.(*Command)
	require.True(t, ok)
	assert.Equal(t, TypeMotorControl, cmd.Type)
	assert.Equal(t, domain.BoatID(""), cmd.BoatID)

	frame, err := cmd.Frame("b7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"motor_control","speed":0.5,"direction":"left","boat_id":"b7"}`, string(frame))
}

func TestCommandFrameOverridesBoatID(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"led_control","boat_id":"b1","state":"on"}`))
	require.NoError(t, err)

	cmd := msg.(*Command)
	assert.Equal(t, domain.BoatID("b1"), cmd.BoatID)

	frame, err := cmd.Frame("b1")
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(frame, &out))
	assert.Equal(t, "b1", out["boat_id"])
	assert.Equal(t, "on", out["state"])
}

func TestDecodeCamelCaseKeys(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"request_stream","boatId":"b1"}`))
	require.NoError(t, err)
	assert.Equal(t, RequestStream{BoatID: "b1"}, msg)

	boatMsg, err := DecodeBoat([]byte(`{"type":"webrtc_offer","boatId":"b1","sdp":"v=0","offerType":"offer"}`))
	require.NoError(t, err)
	assert.Equal(t, BoatOffer{BoatID: "b1", Offer: domain.SessionDescription{SDP: "v=0", Type: "offer"}}, boatMsg)

	msg, err = DecodeBrowser([]byte(`{"type":"webrtc_answer","sdp":"v=0","answerType":"answer"}`))
	require.NoError(t, err)
	assert.Equal(t, "answer", msg.(BrowserAnswer).Answer.Type)

	boatMsg, err = DecodeBoat([]byte(`{"type":"command_response","commandType":"led_control","success":true}`))
	require.NoError(t, err)
	assert.Equal(t, "led_control", boatMsg.(CommandResponse).CommandType)
}

func TestDecodeSnakeCaseWins(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"request_stream","boat_id":"b1","boatId":"b2"}`))
	require.NoError(t, err)
	assert.Equal(t, RequestStream{BoatID: "b1"}, msg)
}

func TestCommandFrameCamelCaseBoatID(t *testing.T) {
	msg, err := DecodeBrowser([]byte(`{"type":"led_control","boatId":"b1","state":"on"}`))
	require.NoError(t, err)

	cmd := msg.(*Command)
	assert.Equal(t, domain.BoatID("b1"), cmd.BoatID)

	frame, err := cmd.Frame("b1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"led_control","boat_id":"b1","state":"on"}`, string(frame))
}

func TestEncodeOutbound(t *testing.T) {
	b, err := Encode(NewStreamResponse("b1", domain.ErrNoOfferAvailable))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stream_response","boat_id":"b1","success":false,"error":"no offer available"}`, string(b))

	b, err = Encode(NewStreamResponse("b1", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stream_response","boat_id":"b1","success":true}`, string(b))

	b, err = Encode(NewBoatsAvailable(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"boats_available","boats":[]}`, string(b))

	b, err = Encode(NewWebRTCOffer("b1", domain.NewOffer("v=0", "")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"webrtc_offer","boat_id":"b1","sdp":"v=0","offer_type":"offer"}`, string(b))

	b, err = Encode(NewCommandResult("b1", "led_control", errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command_response","boat_id":"b1","command_type":"led_control","success":false,"error":"boom"}`, string(b))
}
