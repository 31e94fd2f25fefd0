package execution

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/taquant/ptabacktest/internal/backtest/execution/commission"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

type ExecutionTestSuite struct {
	suite.Suite
}

func TestExecutionSuite(t *testing.T) {
	suite.Run(t, new(ExecutionTestSuite))
}

func testBar(close, volume float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   close + 5,
		Low:    close - 5,
		Close:  close,
		Volume: volume,
	}
}

func marketOrder(side types.Side, quantity float64) types.Order {
	return types.Order{
		ID:          uuid.NewString(),
		Side:        side,
		Type:        types.OrderTypeMarket,
		Quantity:    quantity,
		SubmittedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func limitOrder(side types.Side, quantity, price float64) types.Order {
	order := marketOrder(side, quantity)
	order.Type = types.OrderTypeLimit
	order.Price = price

	return order
}

func (suite *ExecutionTestSuite) newSimulator(cap float64, strict bool) *Simulator {
	sim, err := NewSimulator(commission.NewZero(), NewNoSlippage(), cap, strict, logger.NewNopLogger())
	suite.Require().NoError(err)

	return sim
}

func (suite *ExecutionTestSuite) TestMarketOrderFillsAtClose() {
	sim := suite.newSimulator(0, false)

	fill, err := sim.Execute(marketOrder(types.SideBuy, 10), testBar(5000, 100000))
	suite.NoError(err)
	suite.Equal(10.0, fill.Quantity)
	suite.Equal(5000.0, fill.Price)
	suite.Empty(fill.Annotations)
}

func (suite *ExecutionTestSuite) TestLiquidityCapPartialFill() {
	sim := suite.newSimulator(0.1, false)

	// 1000 requested against 100 volume with a 0.1 cap fills 10.
	fill, err := sim.Execute(marketOrder(types.SideBuy, 1000), testBar(5000, 100))
	suite.NoError(err)
	suite.InDelta(10.0, fill.Quantity, 1e-9)
	suite.True(fill.HasAnnotation(types.AnnotationLiquidityCapped))
}

func (suite *ExecutionTestSuite) TestStrictLiquidityFails() {
	sim := suite.newSimulator(0.1, true)

	_, err := sim.Execute(marketOrder(types.SideBuy, 1000), testBar(5000, 100))
	suite.Error(err)
	suite.True(errors.IsInsufficientLiquidityError(err))

	var liqErr *errors.InsufficientLiquidityError
	suite.True(errors.As(err, &liqErr))
	suite.InDelta(1000.0, liqErr.Requested, 1e-9)
	suite.InDelta(10.0, liqErr.Available, 1e-9)
}

func (suite *ExecutionTestSuite) TestZeroVolumeBarFillsNothing() {
	sim := suite.newSimulator(0.1, false)

	fill, err := sim.Execute(marketOrder(types.SideBuy, 10), testBar(5000, 0))
	suite.NoError(err)
	suite.Equal(0.0, fill.Quantity)
	suite.Equal(0.0, fill.Fee)
	suite.True(fill.HasAnnotation(types.AnnotationZeroVolume))
}

func (suite *ExecutionTestSuite) TestLimitOrderMarketable() {
	sim := suite.newSimulator(0, false)
	bar := testBar(5000, 100000) // range 4995-5005

	// Buy limit above the low is marketable at the better of limit and close.
	fill, err := sim.Execute(limitOrder(types.SideBuy, 10, 4998), bar)
	suite.NoError(err)
	suite.Equal(10.0, fill.Quantity)
	suite.Equal(4998.0, fill.Price)
}

func (suite *ExecutionTestSuite) TestLimitOrderNotMarketable() {
	sim := suite.newSimulator(0, false)
	bar := testBar(5000, 100000)

	fill, err := sim.Execute(limitOrder(types.SideBuy, 10, 4990), bar)
	suite.NoError(err)
	suite.Equal(0.0, fill.Quantity)
	suite.Empty(fill.Annotations)
}

func (suite *ExecutionTestSuite) TestSellLimitMarketable() {
	sim := suite.newSimulator(0, false)
	bar := testBar(5000, 100000)

	fill, err := sim.Execute(limitOrder(types.SideSell, 10, 5003), bar)
	suite.NoError(err)
	suite.Equal(10.0, fill.Quantity)
	suite.Equal(5003.0, fill.Price)

	fill, err = sim.Execute(limitOrder(types.SideSell, 10, 5010), bar)
	suite.NoError(err)
	suite.Equal(0.0, fill.Quantity)
}

func (suite *ExecutionTestSuite) TestCommissionCharged() {
	sim, err := NewSimulator(commission.NewPerContract(3.3), NewNoSlippage(), 0, false, logger.NewNopLogger())
	suite.NoError(err)

	fill, err := sim.Execute(marketOrder(types.SideBuy, 10), testBar(5000, 100000))
	suite.NoError(err)
	suite.InDelta(33.0, fill.Fee, 1e-9)
}

func (suite *ExecutionTestSuite) TestInvalidOrderRejected() {
	sim := suite.newSimulator(0, false)

	bad := marketOrder(types.SideBuy, 0) // quantity must be positive
	_, err := sim.Execute(bad, testBar(5000, 100000))
	suite.Error(err)
}

func (suite *ExecutionTestSuite) TestInvalidCapFraction() {
	_, err := NewSimulator(commission.NewZero(), NewNoSlippage(), 1.5, false, logger.NewNopLogger())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidLiquidityCap))
}

func (suite *ExecutionTestSuite) TestVolumeImpactSlippageAdverseAndMonotone() {
	slip := NewVolumeImpactSlippage(0.1, 1)
	bar := testBar(5000, 1000)

	small := slip.Adjust(5000, types.SideBuy, 10, bar)
	large := slip.Adjust(5000, types.SideBuy, 100, bar)

	suite.Greater(small, 5000.0)
	suite.Greater(large, small)

	sellSmall := slip.Adjust(5000, types.SideSell, 10, bar)
	suite.Less(sellSmall, 5000.0)
}

func (suite *ExecutionTestSuite) TestRandomSlippageDeterministicPerSeed() {
	bar := testBar(5000, 1000)

	a := NewRandomSlippage(0.001, 42)
	b := NewRandomSlippage(0.001, 42)

	for i := 0; i < 10; i++ {
		suite.Equal(a.Adjust(5000, types.SideBuy, 10, bar), b.Adjust(5000, types.SideBuy, 10, bar))
	}
}

func (suite *ExecutionTestSuite) TestRandomSlippageAlwaysAdverse() {
	bar := testBar(5000, 1000)
	slip := NewRandomSlippage(0.001, 7)

	for i := 0; i < 100; i++ {
		suite.GreaterOrEqual(slip.Adjust(5000, types.SideBuy, 10, bar), 5000.0)
		suite.LessOrEqual(slip.Adjust(5000, types.SideSell, 10, bar), 5000.0)
	}
}

func (suite *ExecutionTestSuite) TestOrderFromIntentSizing() {
	intent := types.Intent{
		Direction:       types.DirectionLong,
		CapitalFraction: optional.Some(0.1),
		Reason:          types.Reason{Reason: types.IntentReasonSignal},
	}

	params := SizingParams{
		Equity:       1_000_000,
		Leverage:     5,
		ContractSize: 5,
		Price:        5000,
	}

	// floor(0.1 * 1e6 * 5 / (5000 * 5)) = 20 contracts.
	orderOpt, err := OrderFromIntent(intent, types.Position{}, params, "test", time.Now())
	suite.NoError(err)
	suite.True(orderOpt.IsSome())

	order := orderOpt.Unwrap()
	suite.Equal(types.SideBuy, order.Side)
	suite.InDelta(20.0, order.Quantity, 1e-9)
	suite.Equal(types.OrderTypeMarket, order.Type)
}

func (suite *ExecutionTestSuite) TestOrderFromIntentDiffsAgainstPosition() {
	intent := types.Intent{
		Direction: types.DirectionLong,
		Quantity:  optional.Some(30.0),
		Reason:    types.Reason{Reason: types.IntentReasonResize},
	}

	params := SizingParams{Equity: 1_000_000, Leverage: 1, ContractSize: 1, Price: 100}
	position := types.Position{Quantity: 50, AvgEntryPrice: 90}

	// Already long 50, target 30: sell 20 to shrink.
	orderOpt, err := OrderFromIntent(intent, position, params, "test", time.Now())
	suite.NoError(err)
	suite.True(orderOpt.IsSome())
	suite.Equal(types.SideSell, orderOpt.Unwrap().Side)
	suite.InDelta(20.0, orderOpt.Unwrap().Quantity, 1e-9)
}

func (suite *ExecutionTestSuite) TestOrderFromIntentAtTargetIsNone() {
	intent := types.Intent{
		Direction: types.DirectionLong,
		Quantity:  optional.Some(50.0),
		Reason:    types.Reason{Reason: types.IntentReasonSignal},
	}

	params := SizingParams{Equity: 1_000_000, Leverage: 1, ContractSize: 1, Price: 100}
	position := types.Position{Quantity: 50, AvgEntryPrice: 90}

	orderOpt, err := OrderFromIntent(intent, position, params, "test", time.Now())
	suite.NoError(err)
	suite.True(orderOpt.IsNone())
}

func (suite *ExecutionTestSuite) TestOrderFromIntentFlattens() {
	intent := types.FlatIntent(types.Reason{Reason: types.IntentReasonEndOfData})

	params := SizingParams{Equity: 1_000_000, Leverage: 1, ContractSize: 1, Price: 100}
	position := types.Position{Quantity: -40, AvgEntryPrice: 110}

	orderOpt, err := OrderFromIntent(intent, position, params, "test", time.Now())
	suite.NoError(err)
	suite.True(orderOpt.IsSome())
	suite.Equal(types.SideBuy, orderOpt.Unwrap().Side)
	suite.InDelta(40.0, orderOpt.Unwrap().Quantity, 1e-9)
}

func (suite *ExecutionTestSuite) TestOrderFromIntentShortCrossesThroughFlat() {
	intent := types.Intent{
		Direction: types.DirectionShort,
		Quantity:  optional.Some(10.0),
		Reason:    types.Reason{Reason: types.IntentReasonSignal},
	}

	params := SizingParams{Equity: 1_000_000, Leverage: 1, ContractSize: 1, Price: 100}
	position := types.Position{Quantity: 5, AvgEntryPrice: 95}

	// Long 5 to short 10 is a single 15-contract sell.
	orderOpt, err := OrderFromIntent(intent, position, params, "test", time.Now())
	suite.NoError(err)
	suite.Equal(types.SideSell, orderOpt.Unwrap().Side)
	suite.InDelta(15.0, orderOpt.Unwrap().Quantity, 1e-9)
}

func (suite *ExecutionTestSuite) TestOrderFromIntentRejectsBadPrice() {
	intent := types.FlatIntent(types.Reason{Reason: types.IntentReasonSignal})

	_, err := OrderFromIntent(intent, types.Position{Quantity: 5}, SizingParams{Price: 0, ContractSize: 1}, "test", time.Now())
	suite.Error(err)
}
