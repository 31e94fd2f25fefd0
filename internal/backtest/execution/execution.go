package execution

import (
	"math"

	"go.uber.org/zap"

	"github.com/taquant/ptabacktest/internal/backtest/execution/commission"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Simulator fills orders against the bar on which they were submitted. All
// reference prices come from that bar; the simulator never looks ahead.
type Simulator struct {
	commission           commission.Commission
	slippage             Slippage
	liquidityCapFraction float64
	strictLiquidity      bool
	log                  *logger.Logger
}

// NewSimulator creates an execution simulator.
//
// liquidityCapFraction bounds a single fill to that fraction of the bar's
// volume; zero disables the cap. With strictLiquidity set, an order that
// exceeds the cap fails with InsufficientLiquidityError instead of partially
// filling.
func NewSimulator(comm commission.Commission, slip Slippage, liquidityCapFraction float64, strictLiquidity bool, log *logger.Logger) (*Simulator, error) {
	if liquidityCapFraction < 0 || liquidityCapFraction > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidLiquidityCap,
			"liquidity cap fraction must be within [0, 1], got %f", liquidityCapFraction)
	}

	if comm == nil {
		comm = commission.NewZero()
	}

	if slip == nil {
		slip = NewNoSlippage()
	}

	return &Simulator{
		commission:           comm,
		slippage:             slip,
		liquidityCapFraction: liquidityCapFraction,
		strictLiquidity:      strictLiquidity,
		log:                  log,
	}, nil
}

// Execute simulates the order against the bar and returns the resulting fill.
// The fill quantity may be below the order quantity (liquidity cap) or zero
// (zero-volume bar, unmarketable limit); degradations are annotated on the
// fill rather than raised as errors, except under strict liquidity.
func (s *Simulator) Execute(order types.Order, bar types.Bar) (types.Fill, error) {
	if err := order.Validate(); err != nil {
		return types.Fill{}, err
	}

	fill := types.Fill{
		OrderID:      order.ID,
		Side:         order.Side,
		Time:         bar.Time,
		Reason:       order.Reason,
		StrategyName: order.StrategyName,
	}

	if bar.Volume <= 0 {
		s.log.Debug("order landed on zero-volume bar",
			zap.String("order_id", order.ID),
			zap.Time("bar_time", bar.Time))
		return fill.Annotated(types.AnnotationZeroVolume, "no volume traded on this bar"), nil
	}

	price, marketable := s.referencePrice(order, bar)
	if !marketable {
		return fill, nil
	}

	quantity := order.Quantity
	if s.liquidityCapFraction > 0 {
		maxQuantity := s.liquidityCapFraction * bar.Volume
		if quantity > maxQuantity {
			if s.strictLiquidity {
				return types.Fill{}, errors.NewInsufficientLiquidityError(quantity, maxQuantity, bar.Time)
			}

			s.log.Debug("order capped by liquidity",
				zap.String("order_id", order.ID),
				zap.Float64("requested", quantity),
				zap.Float64("capped", maxQuantity))

			quantity = maxQuantity
			fill = fill.Annotated(types.AnnotationLiquidityCapped,
				"fill capped at available liquidity")
		}
	}

	executionPrice := s.slippage.Adjust(price, order.Side, quantity, bar)
	if executionPrice <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidExecutionPrice,
			"slippage produced non-positive price %f from reference %f", executionPrice, price)
	}

	fill.Quantity = quantity
	fill.Price = executionPrice
	fill.Fee = s.commission.Calculate(quantity, executionPrice)

	return fill, nil
}

// referencePrice resolves the pre-slippage execution price. Market orders
// fill at the bar close. Limit orders fill only when the bar's range touched
// the limit, at the better of the limit and the close.
func (s *Simulator) referencePrice(order types.Order, bar types.Bar) (float64, bool) {
	switch order.Type {
	case types.OrderTypeMarket:
		return bar.Close, true
	case types.OrderTypeLimit:
		if order.Side == types.SideBuy {
			if bar.Low > order.Price {
				return 0, false
			}
			return math.Min(order.Price, bar.Close), true
		}
		if bar.High < order.Price {
			return 0, false
		}
		return math.Max(order.Price, bar.Close), true
	default:
		return 0, false
	}
}
