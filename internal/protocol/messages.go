// Package protocol holds the JSON envelopes exchanged on the boat and browser
// channels. Inbound frames decode into a closed set of variants per channel;
// outbound envelopes are plain structs with their type tag filled in.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
)

const (
	TypeBoatRegister    = "boat_register"
	TypeBoatRegistered  = "boat_registered"
	TypeWebRTCOffer     = "webrtc_offer"
	TypeWebRTCAnswer    = "webrtc_answer"
	TypeBoatsAvailable  = "boats_available"
	TypeListBoats       = "list_boats"
	TypeRequestStream   = "request_stream"
	TypeStreamResponse  = "stream_response"
	TypeLEDControl      = "led_control"
	TypeMotorControl    = "motor_control"
	TypeBoatCommand     = "boat_command"
	TypeCommandResponse = "command_response"
	TypePing            = "ping"
	TypePong            = "pong"
	TypeError           = "error"
)

// IsCommandType reports whether typ is forwarded to boats by the command router.
func IsCommandType(typ string) bool {
	switch typ {
	case TypeLEDControl, TypeMotorControl, TypeBoatCommand:
		return true
	}
	return false
}

// Outbound envelopes.

type BoatRegistered struct {
	Type   string        `json:"type"`
	BoatID domain.BoatID `json:"boat_id"`
}

type WebRTCOffer struct {
	Type      string        `json:"type"`
	BoatID    domain.BoatID `json:"boat_id,omitempty"`
	SDP       string        `json:"sdp"`
	OfferType string        `json:"offer_type"`
}

type WebRTCAnswer struct {
	Type       string        `json:"type"`
	BoatID     domain.BoatID `json:"boat_id,omitempty"`
	SDP        string        `json:"sdp"`
	AnswerType string        `json:"answer_type"`
}

type BoatsAvailable struct {
	Type  string            `json:"type"`
	Boats []domain.BoatInfo `json:"boats"`
}

type StreamResponse struct {
	Type    string        `json:"type"`
	BoatID  domain.BoatID `json:"boat_id"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
}

type CommandResult struct {
	Type        string          `json:"type"`
	BoatID      domain.BoatID   `json:"boat_id,omitempty"`
	CommandType string          `json:"command_type"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type Pong struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewBoatRegistered(id domain.BoatID) BoatRegistered {
	return BoatRegistered{Type: TypeBoatRegistered, BoatID: id}
}

func NewWebRTCOffer(id domain.BoatID, desc domain.SessionDescription) WebRTCOffer {
	return WebRTCOffer{Type: TypeWebRTCOffer, BoatID: id, SDP: desc.SDP, OfferType: desc.Type}
}

func NewWebRTCAnswer(id domain.BoatID, desc domain.SessionDescription) WebRTCAnswer {
	return WebRTCAnswer{Type: TypeWebRTCAnswer, BoatID: id, SDP: desc.SDP, AnswerType: desc.Type}
}

func NewBoatsAvailable(boats []domain.BoatInfo) BoatsAvailable {
	if boats == nil {
		boats = []domain.BoatInfo{}
	}
	return BoatsAvailable{Type: TypeBoatsAvailable, Boats: boats}
}

// NewStreamResponse reports err (if any) as a failed stream.
func NewStreamResponse(id domain.BoatID, err error) StreamResponse {
	resp := StreamResponse{Type: TypeStreamResponse, BoatID: id, Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func NewCommandResult(id domain.BoatID, commandType string, err error) CommandResult {
	resp := CommandResult{Type: TypeCommandResponse, BoatID: id, CommandType: commandType, Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func NewPong(data json.RawMessage) Pong {
	return Pong{Type: TypePong, Data: data}
}

func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}

// Encode marshals an outbound envelope.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Send encodes v and queues it on sig without blocking.
func Send(sig core.SignalConnection, v any) error {
	if sig == nil {
		return core.ErrConnectionClosed
	}
	b, err := Encode(v)
	if err != nil {
		return err
	}
	return sig.TrySend(b)
}
