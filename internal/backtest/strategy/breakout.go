package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/indicator"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Breakout enters long on a close above the highest high of the lookback
// channel and short on a close below the lowest low. The channel excludes the
// current bar so a bar cannot break out of a range it is itself part of.
type Breakout struct {
	entryPeriod     int
	exitPeriod      int
	capitalFraction float64
}

// NewBreakout creates a channel breakout strategy. Positions exit on a close
// through the opposite side of the shorter exit channel.
func NewBreakout(entryPeriod, exitPeriod int, capitalFraction float64) (*Breakout, error) {
	if entryPeriod <= 0 || exitPeriod <= 0 {
		return nil, errors.NewConfigurationErrorf("breakout", "periods must be positive, got %d/%d", entryPeriod, exitPeriod)
	}

	if exitPeriod > entryPeriod {
		return nil, errors.NewConfigurationErrorf("breakout", "exit period %d must not exceed entry period %d", exitPeriod, entryPeriod)
	}

	if capitalFraction <= 0 || capitalFraction > 1 {
		return nil, errors.NewConfigurationErrorf("breakout", "capital fraction must be within (0, 1], got %f", capitalFraction)
	}

	return &Breakout{
		entryPeriod:     entryPeriod,
		exitPeriod:      exitPeriod,
		capitalFraction: capitalFraction,
	}, nil
}

// Name implements Strategy.
func (s *Breakout) Name() string {
	return fmt.Sprintf("breakout_%d_%d", s.entryPeriod, s.exitPeriod)
}

// Decide implements Strategy.
func (s *Breakout) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	if len(history) <= s.entryPeriod {
		return optional.None[types.Intent](), nil
	}

	close := history[len(history)-1].Close
	entryHigh := indicator.Highest(history, s.entryPeriod, true)
	entryLow := indicator.Lowest(history, s.entryPeriod, true)

	if close > entryHigh {
		return optional.Some(types.Intent{
			Direction:       types.DirectionLong,
			Quantity:        optional.None[float64](),
			CapitalFraction: optional.Some(s.capitalFraction),
			Limit:           optional.None[float64](),
			Stop:            optional.Some(indicator.Lowest(history, s.exitPeriod, true)),
			Reason: types.Reason{
				Reason:  types.IntentReasonSignal,
				Message: fmt.Sprintf("close %.4f broke above %d-bar high %.4f", close, s.entryPeriod, entryHigh),
			},
		}), nil
	}

	if close < entryLow {
		return optional.Some(types.Intent{
			Direction:       types.DirectionShort,
			Quantity:        optional.None[float64](),
			CapitalFraction: optional.Some(s.capitalFraction),
			Limit:           optional.None[float64](),
			Stop:            optional.Some(indicator.Highest(history, s.exitPeriod, true)),
			Reason: types.Reason{
				Reason:  types.IntentReasonSignal,
				Message: fmt.Sprintf("close %.4f broke below %d-bar low %.4f", close, s.entryPeriod, entryLow),
			},
		}), nil
	}

	exitHigh := indicator.Highest(history, s.exitPeriod, true)
	exitLow := indicator.Lowest(history, s.exitPeriod, true)

	// Inside the exit channel there is nothing to do; crossing either side of
	// the shorter channel flattens whatever position is on.
	if close < exitLow || close > exitHigh {
		return optional.Some(types.FlatIntent(types.Reason{
			Reason:  types.IntentReasonStopLoss,
			Message: fmt.Sprintf("close %.4f left the %d-bar exit channel [%.4f, %.4f]", close, s.exitPeriod, exitLow, exitHigh),
		})), nil
	}

	return optional.None[types.Intent](), nil
}
