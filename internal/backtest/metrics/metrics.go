package metrics

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Calculate computes the performance summary of a finished run from its
// equity curve and closed trades. It needs at least two equity points to form
// a return series and reports InsufficientDataError otherwise, never NaN.
func Calculate(runID string, curve []types.EquityCurvePoint, trades []types.ClosedTrade, totalFees, realizedPnL float64, barsPerYear int) (types.Summary, error) {
	if len(curve) < 2 {
		return types.Summary{}, errors.NewInsufficientDataErrorf(2, len(curve),
			"equity curve has %d points, need at least 2 to compute returns", len(curve))
	}

	if barsPerYear <= 0 {
		return types.Summary{}, errors.NewConfigurationErrorf("bars_per_year",
			"bars per year must be positive, got %d", barsPerYear)
	}

	initial := curve[0].Equity
	final := curve[len(curve)-1].Equity

	totalReturn := 0.0
	if initial != 0 {
		totalReturn = final/initial - 1
	}

	summary := types.Summary{
		RunID:            runID,
		Timestamp:        time.Now(),
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn(totalReturn, len(curve)-1, barsPerYear),
		MaxDrawdown:      maxDrawdown(curve),
		SharpeRatio:      sharpeRatio(curve, barsPerYear),
		TradeResult:      tradeResult(trades),
		TotalFees:        totalFees,
		RealizedPnL:      realizedPnL,
		FinalEquity:      final,
		BarsPerYear:      float64(barsPerYear),
	}

	return summary, nil
}

// annualizedReturn compounds the total return over the fraction of a year the
// run covered.
func annualizedReturn(totalReturn float64, bars, barsPerYear int) float64 {
	if bars <= 0 || totalReturn <= -1 {
		return 0
	}

	years := float64(bars) / float64(barsPerYear)
	if years == 0 {
		return 0
	}

	return math.Pow(1+totalReturn, 1/years) - 1
}

// maxDrawdown is the deepest recorded drawdown. The ledger maintains the
// running peak, so the curve already carries per-bar drawdowns.
func maxDrawdown(curve []types.EquityCurvePoint) float64 {
	max := 0.0
	for _, p := range curve {
		if p.Drawdown > max {
			max = p.Drawdown
		}
	}

	return max
}

// sharpeRatio is mean over standard deviation of per-bar simple returns,
// scaled by sqrt(barsPerYear). A flat or one-point return series yields zero.
func sharpeRatio(curve []types.EquityCurvePoint, barsPerYear int) float64 {
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	if len(returns) < 2 {
		return 0
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}

	stddev, err := stats.StandardDeviationSample(returns)
	if err != nil || stddev == 0 {
		return 0
	}

	return mean / stddev * math.Sqrt(float64(barsPerYear))
}

// tradeResult aggregates win-rate statistics over closed trades. Trade pnl is
// taken net of exit fees.
func tradeResult(trades []types.ClosedTrade) types.TradeResult {
	result := types.TradeResult{NumberOfTrades: len(trades)}
	if len(trades) == 0 {
		return result
	}

	var winSum, lossSum float64
	for _, t := range trades {
		net := t.PnL - t.Fees
		if net > 0 {
			result.NumberOfWinningTrades++
			winSum += net
		} else {
			result.NumberOfLosingTrades++
			lossSum += net
		}
	}

	result.WinRate = float64(result.NumberOfWinningTrades) / float64(result.NumberOfTrades)

	if result.NumberOfWinningTrades > 0 {
		result.AverageWin = winSum / float64(result.NumberOfWinningTrades)
	}

	if result.NumberOfLosingTrades > 0 {
		result.AverageLoss = lossSum / float64(result.NumberOfLosingTrades)
	}

	if result.AverageLoss != 0 {
		result.ProfitFactor = math.Abs(result.AverageWin / result.AverageLoss)
	}

	return result
}
