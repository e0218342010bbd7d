package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Harbor/internal/domain"
)

// ErrInvalidJSON is returned for frames that are not a JSON object.
var ErrInvalidJSON = fmt.Errorf("%w: invalid json", domain.ErrInvalidMessage)

// BoatMessage is an inbound frame on the boat channel.
type BoatMessage interface{ isBoatMessage() }

// BrowserMessage is an inbound frame on the browser channel.
type BrowserMessage interface{ isBrowserMessage() }

type BoatRegister struct {
	BoatID       domain.BoatID
	Capabilities domain.Capabilities
}

// BoatOffer is a description the boat publishes for pass-through viewers.
type BoatOffer struct {
	BoatID domain.BoatID
	Offer  domain.SessionDescription
}

// BoatAnswer answers a server-relay offer.
type BoatAnswer struct {
	BoatID domain.BoatID
	Answer domain.SessionDescription
}

// CommandResponse is the boat's asynchronous acknowledgment of a command.
type CommandResponse struct {
	BoatID      domain.BoatID
	CommandType string
	Success     bool
	Error       string
	Result      json.RawMessage
}

type Ping struct {
	Data json.RawMessage
}

type ListBoats struct{}

type RequestStream struct {
	BoatID domain.BoatID
}

type BrowserAnswer struct {
	BoatID domain.BoatID
	Answer domain.SessionDescription
}

// Command is a control envelope kept verbatim for the boat.
type Command struct {
	Type   string
	BoatID domain.BoatID
	fields map[string]json.RawMessage
}

func (BoatRegister) isBoatMessage()    {}
func (BoatOffer) isBoatMessage()       {}
func (BoatAnswer) isBoatMessage()      {}
func (CommandResponse) isBoatMessage() {}
func (Ping) isBoatMessage()            {}

func (ListBoats) isBrowserMessage()     {}
func (RequestStream) isBrowserMessage() {}
func (BrowserAnswer) isBrowserMessage() {}
func (*Command) isBrowserMessage()      {}
func (Ping) isBrowserMessage()          {}

// Frame returns the original envelope with boat_id set to id. A camelCase
// boatId from the browser is dropped.
func (c *Command) Frame(id domain.BoatID) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.fields)+1)
	for k, v := range c.fields {
		out[k] = v
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	delete(out, "boatId")
	out["boat_id"] = raw
	return json.Marshal(out)
}

type envelope struct {
	Type         string               `json:"type"`
	BoatID       string               `json:"boat_id"`
	Capabilities *domain.Capabilities `json:"capabilities"`
	SDP          *string              `json:"sdp"`
	OfferType    string               `json:"offer_type"`
	AnswerType   string               `json:"answer_type"`
	CommandType  string               `json:"command_type"`
	Success      bool                 `json:"success"`
	Error        string               `json:"error"`
	Result       json.RawMessage      `json:"result"`
	Data         json.RawMessage      `json:"data"`
}

// UnmarshalJSON accepts camelCase keys where the snake_case one is absent.
func (e *envelope) UnmarshalJSON(data []byte) error {
	type plain envelope
	var aux struct {
		plain
		BoatIDCamel      string `json:"boatId"`
		OfferTypeCamel   string `json:"offerType"`
		AnswerTypeCamel  string `json:"answerType"`
		CommandTypeCamel string `json:"commandType"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = envelope(aux.plain)
	if e.BoatID == "" {
		e.BoatID = aux.BoatIDCamel
	}
	if e.OfferType == "" {
		e.OfferType = aux.OfferTypeCamel
	}
	if e.AnswerType == "" {
		e.AnswerType = aux.AnswerTypeCamel
	}
	if e.CommandType == "" {
		e.CommandType = aux.CommandTypeCamel
	}
	return nil
}

func parseEnvelope(data []byte) (envelope, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return envelope{}, nil, ErrInvalidJSON
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if env.Type == "" {
		return envelope{}, nil, fmt.Errorf("%w: missing type", domain.ErrInvalidMessage)
	}
	return env, fields, nil
}

func invalid(typ, detail string) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrInvalidMessage, typ, detail)
}

func requireBoatID(env envelope) (domain.BoatID, error) {
	id, err := domain.ParseBoatID(env.BoatID)
	if err != nil {
		return "", invalid(env.Type, err.Error())
	}
	return id, nil
}

// optionalBoatID accepts an absent boat_id but rejects a malformed one.
func optionalBoatID(env envelope) (domain.BoatID, error) {
	if env.BoatID == "" {
		return "", nil
	}
	return requireBoatID(env)
}

func requireSDP(env envelope) (string, error) {
	if env.SDP == nil || *env.SDP == "" {
		return "", invalid(env.Type, "missing sdp")
	}
	return *env.SDP, nil
}

// DecodeBoat parses a frame received on the boat channel.
func DecodeBoat(data []byte) (BoatMessage, error) {
	env, _, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeBoatRegister:
		id, err := requireBoatID(env)
		if err != nil {
			return nil, err
		}
		msg := BoatRegister{BoatID: id}
		if env.Capabilities != nil {
			msg.Capabilities = *env.Capabilities
		}
		return msg, nil
	case TypeWebRTCOffer:
		id, err := optionalBoatID(env)
		if err != nil {
			return nil, err
		}
		sdp, err := requireSDP(env)
		if err != nil {
			return nil, err
		}
		return BoatOffer{BoatID: id, Offer: domain.NewOffer(sdp, env.OfferType)}, nil
	case TypeWebRTCAnswer:
		id, err := optionalBoatID(env)
		if err != nil {
			return nil, err
		}
		sdp, err := requireSDP(env)
		if err != nil {
			return nil, err
		}
		return BoatAnswer{BoatID: id, Answer: domain.NewAnswer(sdp, env.AnswerType)}, nil
	case TypeCommandResponse:
		id, err := optionalBoatID(env)
		if err != nil {
			return nil, err
		}
		return CommandResponse{
			BoatID:      id,
			CommandType: env.CommandType,
			Success:     env.Success,
			Error:       env.Error,
			Result:      env.Result,
		}, nil
	case TypePing:
		return Ping{Data: env.Data}, nil
	default:
		return nil, invalid(env.Type, "unknown type")
	}
}

// DecodeBrowser parses a frame received on the browser channel.
func DecodeBrowser(data []byte) (BrowserMessage, error) {
	env, fields, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch {
	case env.Type == TypeListBoats:
		return ListBoats{}, nil
	case env.Type == TypeRequestStream:
		id, err := requireBoatID(env)
		if err != nil {
			return nil, err
		}
		return RequestStream{BoatID: id}, nil
	case env.Type == TypeWebRTCAnswer:
		id, err := optionalBoatID(env)
		if err != nil {
			return nil, err
		}
		sdp, err := requireSDP(env)
		if err != nil {
			return nil, err
		}
		return BrowserAnswer{BoatID: id, Answer: domain.NewAnswer(sdp, env.AnswerType)}, nil
	case IsCommandType(env.Type):
		id, err := optionalBoatID(env)
		if err != nil {
			return nil, err
		}
		return &Command{Type: env.Type, BoatID: id, fields: fields}, nil
	case env.Type == TypePing:
		return Ping{Data: env.Data}, nil
	default:
		return nil, invalid(env.Type, "unknown type")
	}
}

// IsInvalidJSON reports whether err came from a frame that was not JSON at all.
func IsInvalidJSON(err error) bool {
	return errors.Is(err, ErrInvalidJSON)
}
