package domain

import "errors"

var (
	ErrBoatNotFound           = errors.New("boat not found")
	ErrBoatNotConnected       = errors.New("boat not connected")
	ErrNoOfferAvailable       = errors.New("no offer available")
	ErrNoBoatBound            = errors.New("no boat bound")
	ErrRelayTargetUnavailable = errors.New("relay target unavailable")
	ErrInvalidMessage         = errors.New("invalid message")
	ErrLegSetupFailed         = errors.New("leg setup failed")
	ErrHandshakeTimeout       = errors.New("handshake timeout")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrBoatNotFound, "BoatNotFound"},
	{ErrBoatNotConnected, "BoatNotConnected"},
	{ErrNoOfferAvailable, "NoOfferAvailable"},
	{ErrNoBoatBound, "NoBoatBound"},
	{ErrRelayTargetUnavailable, "RelayTargetUnavailable"},
	{ErrInvalidMessage, "InvalidMessage"},
	{ErrLegSetupFailed, "LegSetupFailed"},
	{ErrHandshakeTimeout, "HandshakeTimeout"},
}

// Code returns the stable kind name of err, "" for nil and "Internal" for
// anything outside the known set.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
