package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Ledger is the single owner of account state: cash, position, margin, and
// the equity curve. Cash changes only through realized PnL and fees; open
// positions affect equity through the unrealized mark.
type Ledger struct {
	cash           float64
	initialCapital float64
	position       types.Position
	leverage       float64
	contractSize   float64

	peakEquity   float64
	equityCurve  []types.EquityCurvePoint
	closedTrades []types.ClosedTrade
	states       []types.LedgerState
	totalFees    float64
	realizedPnL  float64

	log *logger.Logger
}

// New creates a ledger with the given starting cash.
func New(initialCapital, leverage, contractSize float64, log *logger.Logger) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidCapital,
			"initial capital must be positive, got %f", initialCapital)
	}

	if leverage < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidLeverage,
			"leverage must be at least 1, got %f", leverage)
	}

	if contractSize <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidContractSize,
			"contract size must be positive, got %f", contractSize)
	}

	return &Ledger{
		cash:           initialCapital,
		initialCapital: initialCapital,
		leverage:       leverage,
		contractSize:   contractSize,
		peakEquity:     initialCapital,
		log:            log,
	}, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns the current net position.
func (l *Ledger) Position() types.Position {
	return l.position
}

// TotalFees returns the cumulative fees paid.
func (l *Ledger) TotalFees() float64 {
	return l.totalFees
}

// RealizedPnL returns the cumulative realized profit and loss, before fees.
func (l *Ledger) RealizedPnL() float64 {
	return l.realizedPnL
}

// EquityCurve returns the recorded per-bar equity samples.
func (l *Ledger) EquityCurve() []types.EquityCurvePoint {
	return l.equityCurve
}

// ClosedTrades returns the recorded closed position segments.
func (l *Ledger) ClosedTrades() []types.ClosedTrade {
	return l.closedTrades
}

// States returns the recorded per-bar account snapshots.
func (l *Ledger) States() []types.LedgerState {
	return l.states
}

// MarginUsed is the margin locked by the open position at the given price.
func (l *Ledger) MarginUsed(price float64) float64 {
	if l.position.IsFlat() {
		return 0
	}

	notional := math.Abs(l.position.Quantity) * price * l.contractSize
	return notional / l.leverage
}

// Equity is cash plus the unrealized mark at the given price.
func (l *Ledger) Equity(price float64) float64 {
	return l.cash + l.position.UnrealizedPnL(price, l.contractSize)
}

// Apply settles a fill into the account. Fills that would require more margin
// than the account can post are clipped to the affordable quantity and the
// returned fill carries a ledger_clipped annotation. Zero-quantity fills pass
// through untouched.
func (l *Ledger) Apply(fill types.Fill, bar types.Bar) (types.Fill, error) {
	if fill.Quantity == 0 {
		return fill, nil
	}

	signed := fill.Quantity
	if fill.Side == types.SideSell {
		signed = -signed
	}

	// Only the quantity that grows exposure needs fresh margin; the closing
	// portion releases margin instead.
	increase := exposureIncrease(l.position.Quantity, signed)
	if increase > 0 {
		affordable := l.affordableIncrease(fill.Price)
		if increase > affordable {
			clipped := math.Floor(affordable)
			if clipped < 0 {
				clipped = 0
			}

			reduction := increase - clipped
			requested := fill.Quantity
			newQuantity := requested - reduction
			if newQuantity < 0 {
				newQuantity = 0
			}

			l.log.Debug("fill clipped by available margin",
				zap.String("order_id", fill.OrderID),
				zap.Float64("requested", requested),
				zap.Float64("clipped", newQuantity))

			fill.Quantity = newQuantity
			// The simulator charged commission on the requested quantity;
			// only the contracts that actually trade owe their share.
			fill.Fee, _ = decimal.NewFromFloat(fill.Fee).
				Mul(decimal.NewFromFloat(newQuantity)).
				Div(decimal.NewFromFloat(requested)).Float64()
			fill = fill.Annotated(types.AnnotationLedgerClipped,
				"fill clipped to the quantity the account can margin")

			if fill.Quantity == 0 {
				return fill, nil
			}

			signed = fill.Quantity
			if fill.Side == types.SideSell {
				signed = -signed
			}
		}
	}

	l.settle(fill, signed)

	return fill, nil
}

// settle mutates cash and position for an already-validated signed fill
// quantity. Crossing through flat is split into a close leg and an open leg.
func (l *Ledger) settle(fill types.Fill, signed float64) {
	current := l.position.Quantity

	closing := 0.0
	if current != 0 && (current > 0) != (signed > 0) {
		closing = math.Min(math.Abs(signed), math.Abs(current))
	}

	if closing > 0 {
		pnl := l.realize(closing, fill.Price)
		l.realizedPnL += pnl
		l.cash += pnl

		l.closedTrades = append(l.closedTrades, types.ClosedTrade{
			Direction:  l.position.Direction(),
			Quantity:   closing,
			EntryPrice: l.position.AvgEntryPrice,
			ExitPrice:  fill.Price,
			EntryTime:  l.position.OpenedAt,
			ExitTime:   fill.Time,
			PnL:        pnl,
			Fees:       fill.Fee,
		})

		sign := 1.0
		if current < 0 {
			sign = -1.0
		}
		l.position.Quantity = current - sign*closing
		if l.position.Quantity == 0 {
			l.position.AvgEntryPrice = 0
		}
	}

	opening := signed
	if closing > 0 {
		sign := 1.0
		if signed < 0 {
			sign = -1.0
		}
		opening = sign * (math.Abs(signed) - closing)
	}

	if opening != 0 {
		l.open(opening, fill.Price, fill.Time)
	}

	l.cash -= fill.Fee
	l.totalFees += fill.Fee
}

// open folds an opening quantity into the position at average cost.
func (l *Ledger) open(signed, price float64, at time.Time) {
	prev := l.position.Quantity
	next := prev + signed

	if prev == 0 {
		l.position = types.Position{
			Quantity:      next,
			AvgEntryPrice: price,
			OpenedAt:      at,
		}
		return
	}

	prevAbs := decimal.NewFromFloat(math.Abs(prev))
	addAbs := decimal.NewFromFloat(math.Abs(signed))
	totalAbs := prevAbs.Add(addAbs)

	avg, _ := decimal.NewFromFloat(l.position.AvgEntryPrice).Mul(prevAbs).
		Add(decimal.NewFromFloat(price).Mul(addAbs)).
		Div(totalAbs).Float64()

	l.position.Quantity = next
	l.position.AvgEntryPrice = avg
}

// realize computes the realized PnL of closing the given quantity at price,
// against the position's average entry.
func (l *Ledger) realize(quantity, price float64) float64 {
	entry := decimal.NewFromFloat(l.position.AvgEntryPrice)
	exit := decimal.NewFromFloat(price)
	qty := decimal.NewFromFloat(quantity)
	size := decimal.NewFromFloat(l.contractSize)

	diff := exit.Sub(entry)
	if l.position.Quantity < 0 {
		diff = diff.Neg()
	}

	pnl, _ := diff.Mul(qty).Mul(size).Float64()
	return pnl
}

// affordableIncrease is the largest exposure increase, in contracts, the
// account can post margin for at the given price.
func (l *Ledger) affordableIncrease(price float64) float64 {
	free := l.cash - l.MarginUsed(price)
	if free <= 0 {
		return 0
	}

	marginPerContract := price * l.contractSize / l.leverage
	if marginPerContract <= 0 {
		return 0
	}

	return free / marginPerContract
}

// MarkToMarket records the per-bar account snapshot and equity curve point
// against the bar's close. Marking the same bar again replaces its sample, so
// fills settled after a mark (such as the end-of-data close) still land in the
// recorded curve.
func (l *Ledger) MarkToMarket(bar types.Bar) types.EquityCurvePoint {
	unrealized := l.position.UnrealizedPnL(bar.Close, l.contractSize)
	equity := l.cash + unrealized

	if n := len(l.equityCurve); n > 0 && l.equityCurve[n-1].Time.Equal(bar.Time) {
		dropped := l.equityCurve[n-1]
		l.equityCurve = l.equityCurve[:n-1]
		l.states = l.states[:len(l.states)-1]

		if dropped.Equity >= l.peakEquity {
			l.peakEquity = l.initialCapital
			for _, p := range l.equityCurve {
				if p.Equity > l.peakEquity {
					l.peakEquity = p.Equity
				}
			}
		}
	}

	if equity > l.peakEquity {
		l.peakEquity = equity
	}

	drawdown := 0.0
	if l.peakEquity > 0 {
		drawdown = (l.peakEquity - equity) / l.peakEquity
	}

	point := types.EquityCurvePoint{
		Time:     bar.Time,
		Equity:   equity,
		Drawdown: drawdown,
	}

	l.equityCurve = append(l.equityCurve, point)
	l.states = append(l.states, types.LedgerState{
		Time:          bar.Time,
		Cash:          l.cash,
		MarginUsed:    l.MarginUsed(bar.Close),
		UnrealizedPnL: unrealized,
		Equity:        equity,
	})

	return point
}

// exposureIncrease returns how many contracts of the signed fill grow
// exposure rather than reduce it.
func exposureIncrease(current, signed float64) float64 {
	if current == 0 || (current > 0) == (signed > 0) {
		return math.Abs(signed)
	}

	closing := math.Min(math.Abs(signed), math.Abs(current))
	return math.Abs(signed) - closing
}
