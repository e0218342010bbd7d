// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxBoatIDLen = 64

var (
	ErrBoatIDEmpty   = errors.New("boat id empty")
	ErrBoatIDTooLong = errors.New("boat id too long")
)

type BoatID string

// ParseBoatID trims and validates a caller-supplied boat id.
func ParseBoatID(raw string) (BoatID, error) {
	id := strings.TrimSpace(raw)
	if len(id) == 0 {
		return "", ErrBoatIDEmpty
	}
	if len(id) > MaxBoatIDLen {
		return "", ErrBoatIDTooLong
	}
	return BoatID(id), nil
}

// Capabilities is what a boat declares at registration. Immutable afterwards.
type Capabilities struct {
	Video  bool `json:"video,omitempty"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	FPS    int  `json:"fps"`
}

// BoatInfo is a read-only listing view (no transport fields).
type BoatInfo struct {
	BoatID       BoatID       `json:"boat_id"`
	Capabilities Capabilities `json:"capabilities"`
	Connected    bool         `json:"connected"`
}
