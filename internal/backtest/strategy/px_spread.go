package strategy

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/indicator"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// PXSpreadConfig holds the tunable parameters of the PX spread momentum
// strategy. Defaults mirror the production parameter set.
type PXSpreadConfig struct {
	// PXATRPeriod is the lookback for the ATR of the PX spread series used to
	// build the dynamic entry threshold.
	PXATRPeriod int `yaml:"px_atr_period" json:"px_atr_period" validate:"gt=0"`
	// PXATRMultiplier scales the PX spread ATR into the entry threshold.
	PXATRMultiplier float64 `yaml:"px_atr_multiplier" json:"px_atr_multiplier" validate:"gt=0"`
	// LongMarginThreshold blocks longs when the processing margin is at or
	// above this level.
	LongMarginThreshold float64 `yaml:"long_margin_threshold" json:"long_margin_threshold"`
	// ShortMarginThreshold blocks shorts when the processing margin is at or
	// below this level.
	ShortMarginThreshold float64 `yaml:"short_margin_threshold" json:"short_margin_threshold"`
	// LowMarginTier scales position size up by 1.5x below this margin.
	LowMarginTier float64 `yaml:"low_margin_tier" json:"low_margin_tier"`
	// HighMarginTier scales position size down by 0.5x above this margin.
	HighMarginTier float64 `yaml:"high_margin_tier" json:"high_margin_tier"`
	// CapitalFraction is the base fraction of equity committed per entry.
	CapitalFraction float64 `yaml:"capital_fraction" json:"capital_fraction" validate:"gt=0,lte=1"`
	// MaxPositionRatio caps the tier-scaled fraction.
	MaxPositionRatio float64 `yaml:"max_position_ratio" json:"max_position_ratio" validate:"gt=0,lte=1"`
	// HoldingPeriod force-closes positions held this many bars.
	HoldingPeriod int `yaml:"holding_period" json:"holding_period" validate:"gt=0"`
	// ATRPeriod is the lookback for the price stop ATR.
	ATRPeriod int `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	// ATRMultiplier scales the price ATR into the stop distance.
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier" validate:"gt=0"`
	// PXMAPeriod is the moving average of the PX spread used as a trend stop.
	PXMAPeriod int `yaml:"px_ma_period" json:"px_ma_period" validate:"gt=0"`
	// BasisTakeProfitPct is the minimum leveraged return, in percent, before
	// the basis take-profit can fire.
	BasisTakeProfitPct float64 `yaml:"basis_take_profit_pct" json:"basis_take_profit_pct"`
	// BasisWeakenDays is how many consecutive adverse basis moves arm the
	// take-profit.
	BasisWeakenDays int `yaml:"basis_weaken_days" json:"basis_weaken_days" validate:"gt=0"`
	// BasisMinHoldBars is the minimum holding time before the basis
	// take-profit is considered.
	BasisMinHoldBars int `yaml:"basis_min_hold_bars" json:"basis_min_hold_bars" validate:"gt=0"`
	// Leverage converts price returns into margin returns for the
	// take-profit check. Matches the run's leverage.
	Leverage float64 `yaml:"leverage" json:"leverage" validate:"gte=1"`
}

// DefaultPXSpreadConfig returns the production parameter set.
func DefaultPXSpreadConfig() PXSpreadConfig {
	return PXSpreadConfig{
		PXATRPeriod:          20,
		PXATRMultiplier:      1.5,
		LongMarginThreshold:  450,
		ShortMarginThreshold: 750,
		LowMarginTier:        350,
		HighMarginTier:       600,
		CapitalFraction:      0.1,
		MaxPositionRatio:     0.8,
		HoldingPeriod:        15,
		ATRPeriod:            14,
		ATRMultiplier:        1.5,
		PXMAPeriod:           5,
		BasisTakeProfitPct:   2.0,
		BasisWeakenDays:      3,
		BasisMinHoldBars:     7,
		Leverage:             5,
	}
}

// Validate checks the config against its struct tags and cross-field rules.
func (c *PXSpreadConfig) Validate() error {
	if c.LongMarginThreshold >= c.ShortMarginThreshold {
		return errors.NewConfigurationErrorf("px_spread",
			"long margin threshold %.1f must be below short margin threshold %.1f",
			c.LongMarginThreshold, c.ShortMarginThreshold)
	}

	if c.LowMarginTier >= c.HighMarginTier {
		return errors.NewConfigurationErrorf("px_spread",
			"low margin tier %.1f must be below high margin tier %.1f",
			c.LowMarginTier, c.HighMarginTier)
	}

	if c.CapitalFraction <= 0 || c.CapitalFraction > 1 {
		return errors.NewConfigurationErrorf("px_spread", "capital fraction must be within (0, 1], got %f", c.CapitalFraction)
	}

	if c.MaxPositionRatio <= 0 || c.MaxPositionRatio > 1 {
		return errors.NewConfigurationErrorf("px_spread", "max position ratio must be within (0, 1], got %f", c.MaxPositionRatio)
	}

	if c.PXATRPeriod <= 0 || c.ATRPeriod <= 0 || c.PXMAPeriod <= 0 {
		return errors.NewConfigurationErrorf("px_spread", "indicator periods must be positive")
	}

	if c.HoldingPeriod <= 0 || c.BasisWeakenDays <= 0 || c.BasisMinHoldBars <= 0 {
		return errors.NewConfigurationErrorf("px_spread", "holding parameters must be positive")
	}

	if c.Leverage < 1 {
		return errors.NewConfigurationErrorf("px_spread", "leverage must be at least 1, got %f", c.Leverage)
	}

	return nil
}

// pxPositionState is the strategy's own view of its target position, derived
// purely from the intents it has emitted on past bars. entryBar is the value
// of the strategy's bar counter at entry, not a history index, so holding time
// stays correct when the engine clips history to a bounded window.
type pxPositionState struct {
	direction      types.Direction
	entryPrice     float64
	entryBar       int
	basisWeakening int
	lastBasis      optional.Option[float64]
}

// PXSpread trades PTA futures on momentum in the upstream PX-naphtha spread.
//
// Entries require the daily change of the PX spread to exceed a dynamic
// threshold of PXATRMultiplier times the spread's ATR, gated by the PTA
// processing margin: longs only while the margin is compressed below
// LongMarginThreshold, shorts only while it is stretched above
// ShortMarginThreshold. Position size is a fraction of equity scaled by margin
// tier and capped at MaxPositionRatio.
//
// Open positions exit on the first of: a price move of ATRMultiplier ATRs
// against the entry, the PX spread crossing its own moving average against the
// position, a basis take-profit once the leveraged return clears
// BasisTakeProfitPct and the basis has weakened BasisWeakenDays bars in a row,
// or the HoldingPeriod running out.
type PXSpread struct {
	cfg   PXSpreadConfig
	state pxPositionState
	bars  int
}

// NewPXSpread creates the PX spread strategy.
func NewPXSpread(cfg PXSpreadConfig) (*PXSpread, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &PXSpread{
		cfg:   cfg,
		state: pxPositionState{direction: types.DirectionFlat},
	}, nil
}

// Name implements Strategy.
func (s *PXSpread) Name() string {
	return "px_spread"
}

// Decide implements Strategy.
func (s *PXSpread) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	if len(history) == 0 {
		return optional.None[types.Intent](), nil
	}

	bar := history[len(history)-1]
	s.bars++

	s.trackBasis(bar)

	if s.state.direction != types.DirectionFlat {
		if intent, ok := s.checkExits(history, bar); ok {
			s.state = pxPositionState{direction: types.DirectionFlat}
			return optional.Some(intent), nil
		}
		return optional.None[types.Intent](), nil
	}

	return s.checkEntry(history, bar)
}

// trackBasis maintains the consecutive-weakening counter. Weakening means the
// basis moved against the open position: down for longs, up for shorts.
func (s *PXSpread) trackBasis(bar types.Bar) {
	defer func() {
		s.state.lastBasis = bar.Basis
	}()

	if s.state.direction == types.DirectionFlat {
		s.state.basisWeakening = 0
		return
	}

	if bar.Basis.IsNone() || s.state.lastBasis.IsNone() {
		return
	}

	delta := bar.Basis.Unwrap() - s.state.lastBasis.Unwrap()
	adverse := (s.state.direction == types.DirectionLong && delta < 0) ||
		(s.state.direction == types.DirectionShort && delta > 0)

	if adverse {
		s.state.basisWeakening++
	} else {
		s.state.basisWeakening = 0
	}
}

func (s *PXSpread) checkEntry(history []types.Bar, bar types.Bar) (optional.Option[types.Intent], error) {
	// The dynamic threshold needs a full ATR window of spread observations
	// plus the previous bar for the daily change.
	if len(history) <= s.cfg.PXATRPeriod {
		return optional.None[types.Intent](), nil
	}

	prev := history[len(history)-2]
	if bar.PXSpread.IsNone() || prev.PXSpread.IsNone() || bar.ProcessingMargin.IsNone() {
		return optional.None[types.Intent](), nil
	}

	prevSpread := prev.PXSpread.Unwrap()
	if prevSpread == 0 {
		return optional.None[types.Intent](), nil
	}

	spreads := make([]float64, 0, len(history))
	for _, b := range history {
		if b.PXSpread.IsSome() {
			spreads = append(spreads, b.PXSpread.Unwrap())
		}
	}
	if len(spreads) <= s.cfg.PXATRPeriod {
		return optional.None[types.Intent](), nil
	}

	spreadATR, err := indicator.SeriesATR(spreads, s.cfg.PXATRPeriod)
	if err != nil {
		return optional.None[types.Intent](), err
	}

	changePct := (bar.PXSpread.Unwrap() - prevSpread) / prevSpread * 100
	thresholdPct := s.cfg.PXATRMultiplier * spreadATR / math.Abs(prevSpread) * 100
	margin := bar.ProcessingMargin.Unwrap()

	var direction types.Direction
	switch {
	case changePct > thresholdPct && margin < s.cfg.LongMarginThreshold:
		direction = types.DirectionLong
	case changePct < -thresholdPct && margin > s.cfg.ShortMarginThreshold:
		direction = types.DirectionShort
	default:
		return optional.None[types.Intent](), nil
	}

	fraction := s.positionFraction(margin)

	s.state = pxPositionState{
		direction:  direction,
		entryPrice: bar.Close,
		entryBar:   s.bars,
		lastBasis:  bar.Basis,
	}

	return optional.Some(types.Intent{
		Direction:       direction,
		Quantity:        optional.None[float64](),
		CapitalFraction: optional.Some(fraction),
		Limit:           optional.None[float64](),
		Stop:            optional.None[float64](),
		Reason: types.Reason{
			Reason: types.IntentReasonSignal,
			Message: fmt.Sprintf("px spread change %.2f%% vs threshold %.2f%%, processing margin %.1f",
				changePct, thresholdPct, margin),
		},
	}), nil
}

// positionFraction applies the margin tier multiplier to the base capital
// fraction and caps it at MaxPositionRatio.
func (s *PXSpread) positionFraction(margin float64) float64 {
	fraction := s.cfg.CapitalFraction
	switch {
	case margin < s.cfg.LowMarginTier:
		fraction *= 1.5
	case margin > s.cfg.HighMarginTier:
		fraction *= 0.5
	}

	return math.Min(fraction, s.cfg.MaxPositionRatio)
}

func (s *PXSpread) checkExits(history []types.Bar, bar types.Bar) (types.Intent, bool) {
	held := s.bars - s.state.entryBar

	if intent, ok := s.checkPriceStop(history, bar); ok {
		return intent, true
	}

	if intent, ok := s.checkPXTrendStop(history, bar); ok {
		return intent, true
	}

	if intent, ok := s.checkBasisTakeProfit(bar, held); ok {
		return intent, true
	}

	if held >= s.cfg.HoldingPeriod {
		return types.FlatIntent(types.Reason{
			Reason:  types.IntentReasonHoldingPeriod,
			Message: fmt.Sprintf("held %d bars, limit %d", held, s.cfg.HoldingPeriod),
		}), true
	}

	return types.Intent{}, false
}

// checkPriceStop exits when price has moved ATRMultiplier ATRs against the
// entry price.
func (s *PXSpread) checkPriceStop(history []types.Bar, bar types.Bar) (types.Intent, bool) {
	atr, err := indicator.ATR(history, s.cfg.ATRPeriod)
	if err != nil {
		// Not enough bars for a full ATR yet, skip this stop.
		return types.Intent{}, false
	}

	stopDistance := s.cfg.ATRMultiplier * atr

	switch s.state.direction {
	case types.DirectionLong:
		if bar.Close <= s.state.entryPrice-stopDistance {
			return types.FlatIntent(types.Reason{
				Reason: types.IntentReasonStopLoss,
				Message: fmt.Sprintf("close %.1f below entry %.1f minus %.1f stop distance",
					bar.Close, s.state.entryPrice, stopDistance),
			}), true
		}
	case types.DirectionShort:
		if bar.Close >= s.state.entryPrice+stopDistance {
			return types.FlatIntent(types.Reason{
				Reason: types.IntentReasonStopLoss,
				Message: fmt.Sprintf("close %.1f above entry %.1f plus %.1f stop distance",
					bar.Close, s.state.entryPrice, stopDistance),
			}), true
		}
	}

	return types.Intent{}, false
}

// checkPXTrendStop exits when the PX spread crosses its moving average
// against the position, meaning the driving trend has stalled.
func (s *PXSpread) checkPXTrendStop(history []types.Bar, bar types.Bar) (types.Intent, bool) {
	if bar.PXSpread.IsNone() {
		return types.Intent{}, false
	}

	spreads := make([]float64, 0, s.cfg.PXMAPeriod)
	for _, b := range history {
		if b.PXSpread.IsSome() {
			spreads = append(spreads, b.PXSpread.Unwrap())
		}
	}
	if len(spreads) < s.cfg.PXMAPeriod {
		return types.Intent{}, false
	}

	ma, err := indicator.SMA(spreads, s.cfg.PXMAPeriod)
	if err != nil {
		return types.Intent{}, false
	}

	spread := bar.PXSpread.Unwrap()
	stopped := (s.state.direction == types.DirectionLong && spread < ma) ||
		(s.state.direction == types.DirectionShort && spread > ma)

	if stopped {
		return types.FlatIntent(types.Reason{
			Reason: types.IntentReasonStopLoss,
			Message: fmt.Sprintf("px spread %.1f crossed its %d-bar average %.1f against the position",
				spread, s.cfg.PXMAPeriod, ma),
		}), true
	}

	return types.Intent{}, false
}

// checkBasisTakeProfit locks in gains when the trade is seasoned, profitable
// on margin, and the basis has weakened several bars in a row.
func (s *PXSpread) checkBasisTakeProfit(bar types.Bar, held int) (types.Intent, bool) {
	if held < s.cfg.BasisMinHoldBars {
		return types.Intent{}, false
	}

	if s.state.basisWeakening < s.cfg.BasisWeakenDays {
		return types.Intent{}, false
	}

	pnlPct := s.leveragedReturnPct(bar.Close)
	if pnlPct <= s.cfg.BasisTakeProfitPct {
		return types.Intent{}, false
	}

	return types.FlatIntent(types.Reason{
		Reason: types.IntentReasonTakeProfit,
		Message: fmt.Sprintf("basis weakened %d bars with %.2f%% return on margin",
			s.state.basisWeakening, pnlPct),
	}), true
}

// leveragedReturnPct is the position's return on committed margin in percent.
func (s *PXSpread) leveragedReturnPct(price float64) float64 {
	if s.state.entryPrice == 0 {
		return 0
	}

	raw := (price - s.state.entryPrice) / s.state.entryPrice
	if s.state.direction == types.DirectionShort {
		raw = -raw
	}

	return raw * s.cfg.Leverage * 100
}
