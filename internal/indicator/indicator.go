// Package indicator provides slice-based technical indicator helpers used by
// strategies. All functions operate on the visible history only; they never
// touch data beyond the slice they are given.
package indicator

import (
	"math"

	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Closes extracts close prices from a bar slice.
func Closes(bars []types.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return closes
}

// SMA returns the simple moving average of the last period values. When fewer
// than period values exist, the available values are averaged, matching the
// rolling min_periods=1 convention of the upstream dataset tooling.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) == 0 {
		return 0, errors.NewInsufficientDataError(1, 0, "SMA requires at least one value")
	}

	start := len(values) - period
	if start < 0 {
		start = 0
	}

	sum := 0.0
	for _, v := range values[start:] {
		sum += v
	}

	return sum / float64(len(values)-start), nil
}

// TrueRange returns the true range of curr given the previous bar.
func TrueRange(curr, prev types.Bar) float64 {
	tr := curr.High - curr.Low
	tr = math.Max(tr, math.Abs(curr.High-prev.Close))
	tr = math.Max(tr, math.Abs(curr.Low-prev.Close))

	return tr
}

// ATR returns the average true range over the last period bars. Like SMA it
// degrades to the available history when fewer bars exist.
func ATR(bars []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(bars) < 2 {
		return 0, errors.NewInsufficientDataError(2, len(bars), "ATR requires at least two bars")
	}

	start := len(bars) - period
	if start < 1 {
		start = 1
	}

	sum := 0.0
	count := 0

	for i := start; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1])
		count++
	}

	return sum / float64(count), nil
}

// SeriesATR returns the mean absolute one-step change of a value series over
// the last period steps. Used for spread series that have no high/low range.
func SeriesATR(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) < 2 {
		return 0, errors.NewInsufficientDataError(2, len(values), "series ATR requires at least two values")
	}

	start := len(values) - period
	if start < 1 {
		start = 1
	}

	sum := 0.0
	count := 0

	for i := start; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
		count++
	}

	return sum / float64(count), nil
}

// Highest returns the highest high over the last period bars, excluding the
// final bar when excludeLast is set.
func Highest(bars []types.Bar, period int, excludeLast bool) float64 {
	end := len(bars)
	if excludeLast {
		end--
	}

	start := end - period
	if start < 0 {
		start = 0
	}

	highest := math.Inf(-1)
	for _, bar := range bars[start:end] {
		highest = math.Max(highest, bar.High)
	}

	return highest
}

// Lowest returns the lowest low over the last period bars, excluding the
// final bar when excludeLast is set.
func Lowest(bars []types.Bar, period int, excludeLast bool) float64 {
	end := len(bars)
	if excludeLast {
		end--
	}

	start := end - period
	if start < 0 {
		start = 0
	}

	lowest := math.Inf(1)
	for _, bar := range bars[start:end] {
		lowest = math.Min(lowest, bar.Low)
	}

	return lowest
}

// StdDev returns the sample standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	if period <= 1 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be greater than one, got %d", period)
	}

	start := len(values) - period
	if start < 0 {
		start = 0
	}

	window := values[start:]
	if len(window) < 2 {
		return 0, errors.NewInsufficientDataError(2, len(window), "standard deviation requires at least two values")
	}

	mean := 0.0
	for _, v := range window {
		mean += v
	}

	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}

	variance /= float64(len(window) - 1)

	return math.Sqrt(variance), nil
}
