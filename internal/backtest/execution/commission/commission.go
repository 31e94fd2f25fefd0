package commission

import (
	"math"

	"github.com/shopspring/decimal"
)

// Commission computes the fee for one fill.
type Commission interface {
	// Calculate returns the fee in account currency for a fill of the given
	// contract quantity at the given price.
	Calculate(quantity, price float64) float64
}

// Scheme identifies a commission model.
type Scheme string

const (
	SchemeZero         Scheme = "zero"
	SchemePerContract  Scheme = "per_contract"
	SchemeProportional Scheme = "proportional"
)

var AllSchemes = []any{
	SchemeZero,
	SchemePerContract,
	SchemeProportional,
}

// Zero charges nothing.
type Zero struct{}

// NewZero creates a free commission model.
func NewZero() Commission {
	return &Zero{}
}

// Calculate returns 0 for any fill.
func (c *Zero) Calculate(quantity, price float64) float64 {
	return 0.0
}

// PerContract charges a flat fee per lot, the exchange fee schedule for PTA
// futures.
type PerContract struct {
	PerLot float64
}

// NewPerContract creates a flat per-lot commission model.
func NewPerContract(perLot float64) Commission {
	return &PerContract{PerLot: perLot}
}

// Calculate returns PerLot times the absolute quantity.
func (c *PerContract) Calculate(quantity, price float64) float64 {
	fee := decimal.NewFromFloat(c.PerLot).Mul(decimal.NewFromFloat(math.Abs(quantity)))
	result, _ := fee.Float64()
	return result
}

// Proportional charges a rate on traded notional, with an optional minimum.
type Proportional struct {
	// Rate is the fraction of notional charged, e.g. 0.0001 for one basis
	// point.
	Rate float64
	// ContractSize converts contracts into notional units.
	ContractSize float64
	// Minimum floors the fee per fill. Zero disables the floor.
	Minimum float64
}

// NewProportional creates a notional-rate commission model.
func NewProportional(rate, contractSize, minimum float64) Commission {
	return &Proportional{Rate: rate, ContractSize: contractSize, Minimum: minimum}
}

// Calculate returns rate times traded notional, floored at Minimum.
func (c *Proportional) Calculate(quantity, price float64) float64 {
	notional := decimal.NewFromFloat(math.Abs(quantity)).
		Mul(decimal.NewFromFloat(price)).
		Mul(decimal.NewFromFloat(c.ContractSize))

	fee, _ := notional.Mul(decimal.NewFromFloat(c.Rate)).Float64()
	return math.Max(fee, c.Minimum)
}

// ForScheme returns the commission model for a scheme. Unknown schemes fall
// back to zero commission.
func ForScheme(scheme Scheme, perLot, rate, contractSize, minimum float64) Commission {
	switch scheme {
	case SchemePerContract:
		return NewPerContract(perLot)
	case SchemeProportional:
		return NewProportional(rate, contractSize, minimum)
	case SchemeZero:
		return NewZero()
	default:
		return NewZero()
	}
}
