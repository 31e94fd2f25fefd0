package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	s, err := New(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.store = s
}

func (suite *StoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func sampleFill(id string) types.Fill {
	return types.Fill{
		OrderID:      id,
		Side:         types.SideBuy,
		Quantity:     10,
		Price:        5000,
		Fee:          33,
		Time:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Reason:       types.Reason{Reason: types.IntentReasonSignal, Message: "test"},
		StrategyName: "px_spread",
	}
}

func (suite *StoreTestSuite) TestSaveAndCountFills() {
	fills := []types.Fill{sampleFill("a"), sampleFill("b")}

	suite.NoError(suite.store.SaveFills("run-1", fills))

	count, err := suite.store.CountFills("run-1")
	suite.NoError(err)
	suite.Equal(2, count)

	count, err = suite.store.CountFills("other-run")
	suite.NoError(err)
	suite.Equal(0, count)
}

func (suite *StoreTestSuite) TestSaveFillWithAnnotations() {
	fill := sampleFill("c").Annotated(types.AnnotationLiquidityCapped, "capped")

	suite.NoError(suite.store.SaveFills("run-1", []types.Fill{fill}))

	count, err := suite.store.CountFills("run-1")
	suite.NoError(err)
	suite.Equal(1, count)
}

func (suite *StoreTestSuite) TestSaveEquityCurveAndFinalEquity() {
	curve := []types.EquityCurvePoint{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Equity: 100000},
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Equity: 101000, Drawdown: 0},
		{Time: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Equity: 100500, Drawdown: 0.00495},
	}

	suite.NoError(suite.store.SaveEquityCurve("run-1", curve))

	final, err := suite.store.FinalEquity("run-1")
	suite.NoError(err)
	suite.InDelta(100500.0, final, 1e-9)
}

func (suite *StoreTestSuite) TestSaveClosedTrades() {
	trades := []types.ClosedTrade{
		{
			Direction:  types.DirectionLong,
			Quantity:   10,
			EntryPrice: 5000,
			ExitPrice:  5100,
			EntryTime:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			ExitTime:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
			PnL:        5000,
			Fees:       33,
		},
	}

	suite.NoError(suite.store.SaveClosedTrades("run-1", trades))
}

func (suite *StoreTestSuite) TestWriteParquet() {
	dir := suite.T().TempDir()
	out := filepath.Join(dir, "results")

	suite.NoError(suite.store.SaveFills("run-1", []types.Fill{sampleFill("a")}))
	suite.NoError(suite.store.SaveEquityCurve("run-1", []types.EquityCurvePoint{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Equity: 100000},
	}))

	suite.NoError(suite.store.Write(out))

	for _, name := range []string{"fills.parquet", "equity_curve.parquet", "closed_trades.parquet"} {
		_, err := os.Stat(filepath.Join(out, name))
		suite.NoError(err, "expected %s to exist", name)
	}
}
