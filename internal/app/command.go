package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/Harbor/internal/core"
	"github.com/dkeye/Harbor/internal/domain"
	"github.com/dkeye/Harbor/internal/metrics"
	"github.com/dkeye/Harbor/internal/protocol"
	"github.com/rs/zerolog/log"
)

// CommandRouter forwards control commands from browsers to boats and carries
// boat acknowledgments back.
type CommandRouter struct {
	Registry *Registry
	Metrics  *metrics.Metrics
}

func NewCommandRouter(reg *Registry, m *metrics.Metrics) *CommandRouter {
	return &CommandRouter{Registry: reg, Metrics: m}
}

// Route delivers cmd to its boat and immediately reports the delivery outcome
// to the browser. Success means the frame reached the boat's transport queue.
func (cr *CommandRouter) Route(browser *core.BrowserSession, cmd *protocol.Command) error {
	target, err := cr.deliver(browser, cmd)
	cr.Metrics.Command(cmd.Type, domain.Code(err))

	logger := log.With().Str("module", "app.command").Str("sid", string(browser.SID)).
		Str("command_type", cmd.Type).Str("boat_id", string(target)).Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("command not delivered")
	} else {
		logger.Debug().Msg("command delivered")
	}

	if sendErr := protocol.Send(browser.Signal(), protocol.NewCommandResult(target, cmd.Type, err)); sendErr != nil {
		logger.Warn().Err(sendErr).Msg("command response not sent")
	}
	return err
}

func (cr *CommandRouter) deliver(browser *core.BrowserSession, cmd *protocol.Command) (domain.BoatID, error) {
	target := cmd.BoatID
	if target == "" {
		bound, ok := browser.BoundBoat()
		if !ok {
			return "", domain.ErrNoBoatBound
		}
		target = bound
	}
	boat, ok := cr.Registry.FindBoat(target)
	if !ok {
		return target, domain.ErrBoatNotFound
	}
	if !boat.Connected() {
		return target, domain.ErrBoatNotConnected
	}
	frame, err := cmd.Frame(target)
	if err != nil {
		return target, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if err := boat.Signal().TrySend(frame); err != nil {
		if errors.Is(err, core.ErrConnectionClosed) {
			return target, domain.ErrBoatNotConnected
		}
		return target, err
	}
	return target, nil
}

// RelayResponse fans a boat's command_response out to every browser bound to
// that boat. It returns the number of browsers reached.
func (cr *CommandRouter) RelayResponse(boat *core.BoatSession, resp protocol.CommandResponse) int {
	out := protocol.CommandResult{
		Type:        protocol.TypeCommandResponse,
		BoatID:      boat.ID,
		CommandType: resp.CommandType,
		Success:     resp.Success,
		Error:       resp.Error,
		Result:      resp.Result,
	}
	frame, err := protocol.Encode(out)
	if err != nil {
		log.Error().Err(err).Str("module", "app.command").Msg("encode command response")
		return 0
	}

	delivered := 0
	for _, b := range cr.Registry.BrowsersBoundTo(boat.ID) {
		if err := b.Signal().TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.command").Str("sid", string(b.SID)).Msg("command response dropped")
			continue
		}
		delivered++
	}
	log.Debug().Str("module", "app.command").Str("boat_id", string(boat.ID)).
		Str("command_type", resp.CommandType).Int("browsers", delivered).Msg("relayed command response")
	return delivered
}
