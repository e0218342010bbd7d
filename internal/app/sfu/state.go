package sfu

import "fmt"

// State is the server relay handshake progress of one stream.
type State int32

const (
	StateIdle State = iota
	StateLegsCreated
	StateBoatOfferSent
	StateBoatAnswered
	StateBrowserOfferSent
	StateBrowserAnswered
	StateConnected
	StateClosed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateLegsCreated:      "legs_created",
	StateBoatOfferSent:    "boat_offer_sent",
	StateBoatAnswered:     "boat_answered",
	StateBrowserOfferSent: "browser_offer_sent",
	StateBrowserAnswered:  "browser_answered",
	StateConnected:        "connected",
	StateClosed:           "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
