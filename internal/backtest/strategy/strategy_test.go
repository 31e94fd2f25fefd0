package strategy

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func closeBar(day int, close float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 1000,
	}
}

func rangeBar(day int, high, low, close float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1000,
	}
}

func (suite *StrategyTestSuite) TestEngineRejectsNilStrategy() {
	_, err := NewEngine(nil, 0, logger.NewNopLogger())
	suite.Error(err)
}

func (suite *StrategyTestSuite) TestEngineRejectsNegativeWindow() {
	_, err := NewEngine(NewFlat(), -1, logger.NewNopLogger())
	suite.Error(err)
	suite.True(errors.IsConfigurationError(err))
}

func (suite *StrategyTestSuite) TestEngineClipsToWindow() {
	var seen int
	probe := Func{
		StrategyName: "probe",
		DecideFunc: func(history []types.Bar) (optional.Option[types.Intent], error) {
			seen = len(history)
			return optional.None[types.Intent](), nil
		},
	}

	engine, err := NewEngine(probe, 3, logger.NewNopLogger())
	suite.NoError(err)

	history := []types.Bar{closeBar(1, 100), closeBar(2, 101), closeBar(3, 102), closeBar(4, 103), closeBar(5, 104)}

	_, err = engine.Decide(history)
	suite.NoError(err)
	suite.Equal(3, seen)
}

func (suite *StrategyTestSuite) TestEngineHidesFutureCapacity() {
	var spareCapacity int
	probe := Func{
		StrategyName: "probe",
		DecideFunc: func(history []types.Bar) (optional.Option[types.Intent], error) {
			spareCapacity = cap(history) - len(history)
			return optional.None[types.Intent](), nil
		},
	}

	engine, err := NewEngine(probe, 0, logger.NewNopLogger())
	suite.NoError(err)

	// Backing array holds future bars beyond the visible prefix.
	all := []types.Bar{closeBar(1, 100), closeBar(2, 101), closeBar(3, 102), closeBar(4, 103)}

	_, err = engine.Decide(all[:2])
	suite.NoError(err)
	suite.Equal(0, spareCapacity)
}

func (suite *StrategyTestSuite) TestEngineValidatesIntent() {
	bad := Func{
		StrategyName: "bad",
		DecideFunc: func(history []types.Bar) (optional.Option[types.Intent], error) {
			return optional.Some(types.Intent{
				Direction:       types.DirectionLong,
				CapitalFraction: optional.Some(1.5),
			}), nil
		},
	}

	engine, err := NewEngine(bad, 0, logger.NewNopLogger())
	suite.NoError(err)

	_, err = engine.Decide([]types.Bar{closeBar(1, 100)})
	suite.Error(err)
}

func (suite *StrategyTestSuite) TestFlatNeverTrades() {
	flat := NewFlat()

	intent, err := flat.Decide([]types.Bar{closeBar(1, 100), closeBar(2, 200)})
	suite.NoError(err)
	suite.True(intent.IsNone())
}

func (suite *StrategyTestSuite) TestSMACrossoverLongOnCrossUp() {
	strat, err := NewSMACrossover(2, 3, 0.2)
	suite.NoError(err)

	history := []types.Bar{closeBar(1, 10), closeBar(2, 9), closeBar(3, 8), closeBar(4, 12)}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsSome())
	suite.Equal(types.DirectionLong, intent.Unwrap().Direction)
	suite.InDelta(0.2, intent.Unwrap().CapitalFraction.Unwrap(), 1e-9)
}

func (suite *StrategyTestSuite) TestSMACrossoverFlatOnCrossDown() {
	strat, err := NewSMACrossover(2, 3, 0.2)
	suite.NoError(err)

	history := []types.Bar{closeBar(1, 10), closeBar(2, 11), closeBar(3, 12), closeBar(4, 8)}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsSome())
	suite.Equal(types.DirectionFlat, intent.Unwrap().Direction)
}

func (suite *StrategyTestSuite) TestSMACrossoverNoSignalWithoutCross() {
	strat, err := NewSMACrossover(2, 3, 0.2)
	suite.NoError(err)

	history := []types.Bar{closeBar(1, 10), closeBar(2, 11), closeBar(3, 12), closeBar(4, 13)}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsNone())
}

func (suite *StrategyTestSuite) TestSMACrossoverConfigValidation() {
	_, err := NewSMACrossover(20, 5, 0.2)
	suite.Error(err)

	_, err = NewSMACrossover(5, 20, 0)
	suite.Error(err)
}

func (suite *StrategyTestSuite) TestMeanReversionEntries() {
	strat, err := NewMeanReversion(3, 1.0, 0.1)
	suite.NoError(err)

	short, err := strat.Decide([]types.Bar{closeBar(1, 10), closeBar(2, 10), closeBar(3, 14)})
	suite.NoError(err)
	suite.True(short.IsSome())
	suite.Equal(types.DirectionShort, short.Unwrap().Direction)

	long, err := strat.Decide([]types.Bar{closeBar(1, 10), closeBar(2, 10), closeBar(3, 6)})
	suite.NoError(err)
	suite.True(long.IsSome())
	suite.Equal(types.DirectionLong, long.Unwrap().Direction)
}

func (suite *StrategyTestSuite) TestMeanReversionExitOnReversion() {
	strat, err := NewMeanReversion(3, 1.0, 0.1)
	suite.NoError(err)

	history := []types.Bar{closeBar(1, 10), closeBar(2, 10), closeBar(3, 6), closeBar(4, 11)}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsSome())
	suite.Equal(types.DirectionFlat, intent.Unwrap().Direction)
	suite.Equal(types.IntentReasonTakeProfit, intent.Unwrap().Reason.Reason)
}

func (suite *StrategyTestSuite) TestMeanReversionFlatSeriesNoSignal() {
	strat, err := NewMeanReversion(3, 1.0, 0.1)
	suite.NoError(err)

	intent, err := strat.Decide([]types.Bar{closeBar(1, 10), closeBar(2, 10), closeBar(3, 10)})
	suite.NoError(err)
	suite.True(intent.IsNone())
}

func (suite *StrategyTestSuite) TestBreakoutLongAboveChannel() {
	strat, err := NewBreakout(3, 2, 0.1)
	suite.NoError(err)

	history := []types.Bar{
		rangeBar(1, 10, 8, 9),
		rangeBar(2, 11, 9, 10),
		rangeBar(3, 10.5, 9.5, 10),
		rangeBar(4, 12.5, 11, 12),
	}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsSome())
	suite.Equal(types.DirectionLong, intent.Unwrap().Direction)
	suite.InDelta(9.0, intent.Unwrap().Stop.Unwrap(), 1e-9)
}

func (suite *StrategyTestSuite) TestBreakoutShortBelowChannel() {
	strat, err := NewBreakout(3, 2, 0.1)
	suite.NoError(err)

	history := []types.Bar{
		rangeBar(1, 10, 8, 9),
		rangeBar(2, 11, 9, 10),
		rangeBar(3, 10.5, 9.5, 10),
		rangeBar(4, 8, 6.5, 7),
	}

	intent, err := strat.Decide(history)
	suite.NoError(err)
	suite.True(intent.IsSome())
	suite.Equal(types.DirectionShort, intent.Unwrap().Direction)
}

func (suite *StrategyTestSuite) TestRegistryBuildsEveryName() {
	for _, name := range Names() {
		strat, err := FromConfig(Config{Name: name})
		suite.NoError(err, "strategy %s", name)
		suite.NotNil(strat)
	}
}

func (suite *StrategyTestSuite) TestRegistryUnknownStrategy() {
	_, err := FromConfig(Config{Name: "nope"})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownStrategy))
}

func (suite *StrategyTestSuite) TestRegistryDecodesParams() {
	strat, err := FromConfig(Config{
		Name: "sma_crossover",
		Params: map[string]any{
			"short_period":     3,
			"long_period":      9,
			"capital_fraction": 0.25,
		},
	})
	suite.NoError(err)
	suite.Equal("sma_crossover_3_9", strat.Name())
}

func (suite *StrategyTestSuite) TestRegistryRejectsBadParams() {
	_, err := FromConfig(Config{
		Name: "sma_crossover",
		Params: map[string]any{
			"short_period": 30,
			"long_period":  9,
		},
	})
	suite.Error(err)
}
