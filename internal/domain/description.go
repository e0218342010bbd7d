package domain

const (
	SDPTypeOffer  = "offer"
	SDPTypeAnswer = "answer"
)

// SessionDescription is an opaque SDP payload plus its type ("offer"/"answer").
type SessionDescription struct {
	SDP  string
	Type string
}

func NewOffer(sdp, typ string) SessionDescription {
	if typ == "" {
		typ = SDPTypeOffer
	}
	return SessionDescription{SDP: sdp, Type: typ}
}

func NewAnswer(sdp, typ string) SessionDescription {
	if typ == "" {
		typ = SDPTypeAnswer
	}
	return SessionDescription{SDP: sdp, Type: typ}
}
