package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Harbor/internal/app/orch"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type OfferRequest struct {
	SDP    string `json:"sdp"`
	Type   string `json:"type"`
	BoatID string `json:"boat_id"`
}

type OfferResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type handlers struct {
	orch             *orch.Orchestrator
	handshakeTimeout time.Duration
}

func (h *handlers) offer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SDP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid sdp"})
		return
	}
	if req.Type != "" && req.Type != domain.SDPTypeOffer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be offer"})
		return
	}
	boatID, err := domain.ParseBoatID(req.BoatID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid boat_id"})
		return
	}

	ctx := c.Request.Context()
	if h.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.handshakeTimeout)
		defer cancel()
	}

	answer, err := h.orch.AnswerHTTPOffer(ctx, boatID, domain.NewOffer(req.SDP, req.Type))
	if err != nil {
		status := offerStatus(err)
		log.Warn().Err(err).Str("module", "adapters.http").Str("boat_id", string(boatID)).Int("status", status).Msg("offer failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, OfferResponse{SDP: answer.SDP, Type: answer.Type})
}

func offerStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrBoatNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBoatNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrHandshakeTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) boats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"boats": h.orch.Registry.ListBoats()})
}

func (h *handlers) healthz(c *gin.Context) {
	boats, browsers := h.orch.Registry.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"boats":    boats,
		"browsers": browsers,
		"relays":   h.orch.Relays.Len(),
	})
}
