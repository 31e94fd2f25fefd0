package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/indicator"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// MeanReversion fades moves away from a moving average. It enters when the
// close deviates from the mean by more than a standard-deviation band and
// exits when the close crosses back through the mean.
type MeanReversion struct {
	period          int
	entryStdDev     float64
	capitalFraction float64
}

// NewMeanReversion creates a mean reversion strategy over the given lookback
// period with an entry band of entryStdDev standard deviations.
func NewMeanReversion(period int, entryStdDev, capitalFraction float64) (*MeanReversion, error) {
	if period < 2 {
		return nil, errors.NewConfigurationErrorf("mean_reversion", "period must be at least 2, got %d", period)
	}

	if entryStdDev <= 0 {
		return nil, errors.NewConfigurationErrorf("mean_reversion", "entry band must be positive, got %f", entryStdDev)
	}

	if capitalFraction <= 0 || capitalFraction > 1 {
		return nil, errors.NewConfigurationErrorf("mean_reversion", "capital fraction must be within (0, 1], got %f", capitalFraction)
	}

	return &MeanReversion{
		period:          period,
		entryStdDev:     entryStdDev,
		capitalFraction: capitalFraction,
	}, nil
}

// Name implements Strategy.
func (s *MeanReversion) Name() string {
	return fmt.Sprintf("mean_reversion_%d", s.period)
}

// Decide implements Strategy.
func (s *MeanReversion) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	if len(history) < s.period {
		return optional.None[types.Intent](), nil
	}

	closes := indicator.Closes(history)

	mean, err := indicator.SMA(closes, s.period)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	stddev, err := indicator.StdDev(closes, s.period)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	if stddev == 0 {
		return optional.None[types.Intent](), nil
	}

	close := closes[len(closes)-1]
	zscore := (close - mean) / stddev

	if zscore <= -s.entryStdDev {
		return optional.Some(types.Intent{
			Direction:       types.DirectionLong,
			Quantity:        optional.None[float64](),
			CapitalFraction: optional.Some(s.capitalFraction),
			Limit:           optional.None[float64](),
			Stop:            optional.None[float64](),
			Reason: types.Reason{
				Reason:  types.IntentReasonSignal,
				Message: fmt.Sprintf("close %.4f is %.2f stddev below mean %.4f", close, -zscore, mean),
			},
		}), nil
	}

	if zscore >= s.entryStdDev {
		return optional.Some(types.Intent{
			Direction:       types.DirectionShort,
			Quantity:        optional.None[float64](),
			CapitalFraction: optional.Some(s.capitalFraction),
			Limit:           optional.None[float64](),
			Stop:            optional.None[float64](),
			Reason: types.Reason{
				Reason:  types.IntentReasonSignal,
				Message: fmt.Sprintf("close %.4f is %.2f stddev above mean %.4f", close, zscore, mean),
			},
		}), nil
	}

	// Exit once the move has reverted past the mean.
	if len(closes) >= 2 {
		prev := closes[len(closes)-2]
		if (prev < mean && close >= mean) || (prev > mean && close <= mean) {
			return optional.Some(types.FlatIntent(types.Reason{
				Reason:  types.IntentReasonTakeProfit,
				Message: fmt.Sprintf("close %.4f reverted through mean %.4f", close, mean),
			})), nil
		}
	}

	return optional.None[types.Intent](), nil
}
