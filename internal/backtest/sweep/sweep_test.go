package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/taquant/ptabacktest/internal/backtest"
	"github.com/taquant/ptabacktest/internal/backtest/runner"
	"github.com/taquant/ptabacktest/internal/backtest/strategy"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
)

type SweepTestSuite struct {
	suite.Suite
}

func TestSweepSuite(t *testing.T) {
	suite.Run(t, new(SweepTestSuite))
}

func sweepBars(n int) []types.Bar {
	bars := make([]types.Bar, 0, n)
	for i := 0; i < n; i++ {
		close := 100.0 + float64(i%7) - float64(i%3)
		bars = append(bars, types.Bar{
			Time:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   close,
			High:   close + 2,
			Low:    close - 2,
			Close:  close,
			Volume: 100000,
		})
	}

	return bars
}

func (suite *SweepTestSuite) TestRunsAllVariants() {
	variants := []Variant{}
	for _, window := range []int{0, 5, 10} {
		cfg := backtest.TestConfig()
		cfg.LookbackWindow = window
		variants = append(variants, Variant{Name: "flat", Config: cfg})
	}

	outcomes, err := Run(context.Background(), sweepBars(20), variants, 2, logger.NewNopLogger())
	suite.NoError(err)
	suite.Require().Len(outcomes, 3)

	for _, outcome := range outcomes {
		suite.NoError(outcome.Err)
		suite.Equal(runner.StatusCompleted, outcome.Result.Status)
		suite.Len(outcome.Result.EquityCurve, 20)
	}
}

func (suite *SweepTestSuite) TestVariantIsolation() {
	// Two identical configurations must produce identical results even when
	// run concurrently against the same bars.
	cfg := backtest.TestConfig()
	cfg.Strategy = strategy.Config{
		Name:   "sma_crossover",
		Params: map[string]any{"short_period": 2, "long_period": 4, "capital_fraction": 0.3},
	}

	variants := []Variant{
		{Name: "a", Config: cfg},
		{Name: "b", Config: cfg},
	}

	outcomes, err := Run(context.Background(), sweepBars(30), variants, 2, logger.NewNopLogger())
	suite.NoError(err)
	suite.Require().Len(outcomes, 2)
	suite.NoError(outcomes[0].Err)
	suite.NoError(outcomes[1].Err)

	a, b := outcomes[0].Result, outcomes[1].Result
	suite.Require().Equal(len(a.Fills), len(b.Fills))
	for i := range a.Fills {
		suite.Equal(a.Fills[i].Quantity, b.Fills[i].Quantity)
		suite.Equal(a.Fills[i].Price, b.Fills[i].Price)
	}

	suite.Require().Equal(len(a.EquityCurve), len(b.EquityCurve))
	for i := range a.EquityCurve {
		suite.Equal(a.EquityCurve[i].Equity, b.EquityCurve[i].Equity)
	}
}

func (suite *SweepTestSuite) TestBadVariantDoesNotStopOthers() {
	good := backtest.TestConfig()

	bad := backtest.TestConfig()
	bad.Strategy.Name = "does_not_exist"

	variants := []Variant{
		{Name: "bad", Config: bad},
		{Name: "good", Config: good},
	}

	outcomes, err := Run(context.Background(), sweepBars(10), variants, 0, logger.NewNopLogger())
	suite.NoError(err)
	suite.Error(outcomes[0].Err)
	suite.NoError(outcomes[1].Err)
	suite.Equal(runner.StatusCompleted, outcomes[1].Result.Status)
}

func (suite *SweepTestSuite) TestEmptyVariants() {
	outcomes, err := Run(context.Background(), sweepBars(5), nil, 1, logger.NewNopLogger())
	suite.NoError(err)
	suite.Empty(outcomes)
}
