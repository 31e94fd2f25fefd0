package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current net holding in the instrument. Quantity is signed:
// positive for long, negative for short. Mutated exclusively by the ledger in
// response to fills.
type Position struct {
	// Quantity is the signed net quantity in contracts.
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// AvgEntryPrice is the average-cost entry price of the open quantity.
	AvgEntryPrice float64 `yaml:"avg_entry_price" json:"avg_entry_price" csv:"avg_entry_price"`
	// OpenedAt is the bar timestamp the current position segment opened.
	OpenedAt time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
}

// Direction returns the exposure direction of the position.
func (p Position) Direction() Direction {
	switch {
	case p.Quantity > 0:
		return DirectionLong
	case p.Quantity < 0:
		return DirectionShort
	default:
		return DirectionFlat
	}
}

// IsFlat reports whether the position has no open quantity.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// UnrealizedPnL marks the open quantity against the given price. The contract
// size converts contracts into notional units.
func (p Position) UnrealizedPnL(price, contractSize float64) float64 {
	if p.Quantity == 0 {
		return 0
	}

	priceDec := decimal.NewFromFloat(price)
	entryDec := decimal.NewFromFloat(p.AvgEntryPrice)
	qtyDec := decimal.NewFromFloat(p.Quantity)
	sizeDec := decimal.NewFromFloat(contractSize)

	// (price - avg entry) * signed quantity * contract size; the sign of the
	// quantity makes the same expression correct for shorts.
	pnl, _ := priceDec.Sub(entryDec).Mul(qtyDec).Mul(sizeDec).Float64()

	return pnl
}

// LedgerState is the per-bar snapshot of the account. Equity is always marked
// against the current bar's close, never a stale price.
type LedgerState struct {
	Time          time.Time `yaml:"time" json:"time" csv:"time"`
	Cash          float64   `yaml:"cash" json:"cash" csv:"cash"`
	MarginUsed    float64   `yaml:"margin_used" json:"margin_used" csv:"margin_used"`
	UnrealizedPnL float64   `yaml:"unrealized_pnl" json:"unrealized_pnl" csv:"unrealized_pnl"`
	Equity        float64   `yaml:"equity" json:"equity" csv:"equity"`
}

// EquityCurvePoint is one append-only sample of total account value,
// recorded once per simulated bar.
type EquityCurvePoint struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Equity float64   `yaml:"equity" json:"equity" csv:"equity"`
	// Drawdown is the fractional decline from the running equity peak.
	Drawdown float64 `yaml:"drawdown" json:"drawdown" csv:"drawdown"`
}

// ClosedTrade is one fully or partially closed position segment with its
// realized result. Used for win-rate style statistics.
type ClosedTrade struct {
	Direction  Direction `yaml:"direction" json:"direction" csv:"direction"`
	Quantity   float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64   `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	// PnL is the realized profit or loss of this segment, before fees.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
	// Fees is the exit-side fee charged on the closing fill.
	Fees float64 `yaml:"fees" json:"fees" csv:"fees"`
}
