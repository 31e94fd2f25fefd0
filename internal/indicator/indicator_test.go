package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func bar(day int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1000,
	}
}

func (suite *IndicatorTestSuite) TestSMA() {
	values := []float64{1, 2, 3, 4, 5}

	sma, err := SMA(values, 3)
	suite.NoError(err)
	suite.InDelta(4.0, sma, 1e-9)

	full, err := SMA(values, 5)
	suite.NoError(err)
	suite.InDelta(3.0, full, 1e-9)
}

func (suite *IndicatorTestSuite) TestSMADegradesToAvailableHistory() {
	sma, err := SMA([]float64{10, 20}, 5)
	suite.NoError(err)
	suite.InDelta(15.0, sma, 1e-9)
}

func (suite *IndicatorTestSuite) TestSMAErrors() {
	_, err := SMA([]float64{1}, 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))

	_, err = SMA(nil, 3)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestTrueRangeUsesGaps() {
	prev := bar(1, 100, 105, 95, 100)
	curr := bar(2, 110, 112, 108, 111)

	// Gap up: the range to the previous close dominates the bar's own range.
	suite.InDelta(12.0, TrueRange(curr, prev), 1e-9)
}

func (suite *IndicatorTestSuite) TestATR() {
	bars := []types.Bar{
		bar(1, 100, 102, 98, 100),
		bar(2, 100, 103, 99, 102),
		bar(3, 102, 104, 100, 101),
	}

	// TR2 = max(4, |103-100|, |99-100|) = 4, TR3 = max(4, |104-102|, |100-102|) = 4.
	atr, err := ATR(bars, 2)
	suite.NoError(err)
	suite.InDelta(4.0, atr, 1e-9)
}

func (suite *IndicatorTestSuite) TestATRInsufficientData() {
	_, err := ATR([]types.Bar{bar(1, 100, 102, 98, 100)}, 14)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestSeriesATR() {
	values := []float64{100, 103, 101, 106}

	// Last two steps: |101-103| = 2, |106-101| = 5.
	atr, err := SeriesATR(values, 2)
	suite.NoError(err)
	suite.InDelta(3.5, atr, 1e-9)
}

func (suite *IndicatorTestSuite) TestHighestLowest() {
	bars := []types.Bar{
		bar(1, 100, 110, 90, 100),
		bar(2, 100, 120, 95, 100),
		bar(3, 100, 105, 85, 100),
		bar(4, 100, 130, 99, 100),
	}

	suite.InDelta(130.0, Highest(bars, 3, false), 1e-9)
	suite.InDelta(120.0, Highest(bars, 3, true), 1e-9)
	suite.InDelta(85.0, Lowest(bars, 3, false), 1e-9)
	suite.InDelta(85.0, Lowest(bars, 3, true), 1e-9)
}

func (suite *IndicatorTestSuite) TestStdDev() {
	sd, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	suite.NoError(err)
	// Sample standard deviation of this classic series.
	suite.InDelta(2.138089935, sd, 1e-6)
}

func (suite *IndicatorTestSuite) TestStdDevWindowTooShort() {
	_, err := StdDev([]float64{5}, 3)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestCloses() {
	bars := []types.Bar{bar(1, 1, 2, 0.5, 1.5), bar(2, 1.5, 3, 1, 2.5)}
	suite.Equal([]float64{1.5, 2.5}, Closes(bars))
}
