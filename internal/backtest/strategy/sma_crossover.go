package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/indicator"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// SMACrossover goes long when the short moving average crosses above the long
// moving average and flattens when it crosses back below.
type SMACrossover struct {
	shortPeriod     int
	longPeriod      int
	capitalFraction float64
}

// NewSMACrossover creates an SMA crossover strategy. capitalFraction sizes
// the long target as a fraction of equity.
func NewSMACrossover(shortPeriod, longPeriod int, capitalFraction float64) (*SMACrossover, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, errors.NewConfigurationErrorf("sma_crossover", "periods must be positive, got %d/%d", shortPeriod, longPeriod)
	}

	if shortPeriod >= longPeriod {
		return nil, errors.NewConfigurationErrorf("sma_crossover", "short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	if capitalFraction <= 0 || capitalFraction > 1 {
		return nil, errors.NewConfigurationErrorf("sma_crossover", "capital fraction must be within (0, 1], got %f", capitalFraction)
	}

	return &SMACrossover{
		shortPeriod:     shortPeriod,
		longPeriod:      longPeriod,
		capitalFraction: capitalFraction,
	}, nil
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("sma_crossover_%d_%d", s.shortPeriod, s.longPeriod)
}

// Decide implements Strategy.
func (s *SMACrossover) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	// One extra bar is needed for the previous-bar averages.
	if len(history) <= s.longPeriod {
		return optional.None[types.Intent](), nil
	}

	closes := indicator.Closes(history)

	shortMA, err := indicator.SMA(closes, s.shortPeriod)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	longMA, err := indicator.SMA(closes, s.longPeriod)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	prevCloses := closes[:len(closes)-1]

	prevShortMA, err := indicator.SMA(prevCloses, s.shortPeriod)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	prevLongMA, err := indicator.SMA(prevCloses, s.longPeriod)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	if shortMA > longMA && prevShortMA <= prevLongMA {
		return optional.Some(types.Intent{
			Direction:       types.DirectionLong,
			Quantity:        optional.None[float64](),
			CapitalFraction: optional.Some(s.capitalFraction),
			Limit:           optional.None[float64](),
			Stop:            optional.None[float64](),
			Reason: types.Reason{
				Reason:  types.IntentReasonSignal,
				Message: fmt.Sprintf("short MA %.4f crossed above long MA %.4f", shortMA, longMA),
			},
		}), nil
	}

	if shortMA < longMA && prevShortMA >= prevLongMA {
		return optional.Some(types.FlatIntent(types.Reason{
			Reason:  types.IntentReasonSignal,
			Message: fmt.Sprintf("short MA %.4f crossed below long MA %.4f", shortMA, longMA),
		})), nil
	}

	return optional.None[types.Intent](), nil
}
