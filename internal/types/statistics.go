package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TradeResult aggregates counts over closed trades.
type TradeResult struct {
	// Count of all closed trades.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of closed trades with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of closed trades with non-positive pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Win rate over closed trades.
	WinRate float64 `yaml:"win_rate"`
	// Average realized pnl of winning trades.
	AverageWin float64 `yaml:"average_win"`
	// Average realized pnl of losing trades (non-positive).
	AverageLoss float64 `yaml:"average_loss"`
	// ProfitFactor is |average win / average loss|. Zero when undefined.
	ProfitFactor float64 `yaml:"profit_factor"`
}

// Summary is the performance record computed from a completed run's equity
// curve and trade log.
type Summary struct {
	// ID of the backtest run this summary belongs to.
	RunID string `yaml:"run_id" json:"run_id"`
	// Timestamp is when the summary was computed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// TotalReturn is (final equity / initial equity) - 1.
	TotalReturn float64 `yaml:"total_return"`
	// AnnualizedReturn compounds the total return over the bar frequency.
	AnnualizedReturn float64 `yaml:"annualized_return"`
	// MaxDrawdown is the largest fractional peak-to-trough decline.
	MaxDrawdown float64 `yaml:"max_drawdown"`
	// SharpeRatio is mean/stddev of per-bar returns, annualized.
	SharpeRatio float64 `yaml:"sharpe_ratio"`
	// TradeResult holds win-rate style statistics over closed trades.
	TradeResult TradeResult `yaml:"trade_result"`
	// TotalFees is the sum of fees over all fills.
	TotalFees float64 `yaml:"total_fees"`
	// RealizedPnL is the sum of realized pnl over closed trades.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// FinalEquity is the last equity curve point.
	FinalEquity float64 `yaml:"final_equity"`
	// BarsPerYear is the annualization convention the summary was computed with.
	BarsPerYear float64 `yaml:"bars_per_year"`
}

// WriteSummary writes the summary to a YAML file.
func WriteSummary(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary to file: %w", err)
	}

	return nil
}
