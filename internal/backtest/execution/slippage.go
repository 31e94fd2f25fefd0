package execution

import (
	"math"
	"math/rand"

	"github.com/taquant/ptabacktest/internal/types"
)

// Slippage adjusts a reference execution price for market impact. Adjustments
// always move the price against the order: up for buys, down for sells.
type Slippage interface {
	// Adjust returns the execution price for an order of the given quantity
	// against the bar being simulated.
	Adjust(price float64, side types.Side, quantity float64, bar types.Bar) float64
}

// SlippageModel identifies a slippage implementation.
type SlippageModel string

const (
	SlippageNone         SlippageModel = "none"
	SlippageVolumeImpact SlippageModel = "volume_impact"
	SlippageRandom       SlippageModel = "random"
)

var AllSlippageModels = []any{
	SlippageNone,
	SlippageVolumeImpact,
	SlippageRandom,
}

// NoSlippage fills at the reference price.
type NoSlippage struct{}

// NewNoSlippage creates a slippage model that leaves prices untouched.
func NewNoSlippage() Slippage {
	return &NoSlippage{}
}

// Adjust implements Slippage.
func (s *NoSlippage) Adjust(price float64, side types.Side, quantity float64, bar types.Bar) float64 {
	return price
}

// VolumeImpactSlippage scales impact with the order's share of bar volume:
// impact = coefficient * (quantity / volume)^exponent. Impact is monotone in
// quantity for a fixed bar.
type VolumeImpactSlippage struct {
	Coefficient float64
	Exponent    float64
}

// NewVolumeImpactSlippage creates a volume participation slippage model.
func NewVolumeImpactSlippage(coefficient, exponent float64) Slippage {
	return &VolumeImpactSlippage{Coefficient: coefficient, Exponent: exponent}
}

// Adjust implements Slippage. Bars with zero volume get no adjustment since
// the simulator fills nothing against them anyway.
func (s *VolumeImpactSlippage) Adjust(price float64, side types.Side, quantity float64, bar types.Bar) float64 {
	if bar.Volume <= 0 || quantity <= 0 {
		return price
	}

	participation := quantity / bar.Volume
	impact := s.Coefficient * math.Pow(participation, s.Exponent)

	if side == types.SideBuy {
		return price * (1 + impact)
	}
	return price * (1 - impact)
}

// RandomSlippage draws a normally distributed impact from a seeded generator,
// so runs with the same seed replay identical adjustments. The draw's
// absolute value is used, keeping the adjustment adverse.
type RandomSlippage struct {
	stdDevFraction float64
	rng            *rand.Rand
}

// NewRandomSlippage creates a seeded random slippage model. stdDevFraction is
// the standard deviation of the impact as a fraction of price.
func NewRandomSlippage(stdDevFraction float64, seed int64) Slippage {
	return &RandomSlippage{
		stdDevFraction: stdDevFraction,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Adjust implements Slippage.
func (s *RandomSlippage) Adjust(price float64, side types.Side, quantity float64, bar types.Bar) float64 {
	impact := math.Abs(s.rng.NormFloat64()) * s.stdDevFraction

	if side == types.SideBuy {
		return price * (1 + impact)
	}
	return price * (1 - impact)
}

// ForSlippageModel returns the slippage model for a name. Unknown names fall
// back to no slippage.
func ForSlippageModel(model SlippageModel, coefficient, exponent, stdDevFraction float64, seed int64) Slippage {
	switch model {
	case SlippageVolumeImpact:
		return NewVolumeImpactSlippage(coefficient, exponent)
	case SlippageRandom:
		return NewRandomSlippage(stdDevFraction, seed)
	case SlippageNone:
		return NewNoSlippage()
	default:
		return NewNoSlippage()
	}
}
