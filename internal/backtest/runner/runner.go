package runner

import (
	"context"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/taquant/ptabacktest/internal/backtest"
	"github.com/taquant/ptabacktest/internal/backtest/execution"
	"github.com/taquant/ptabacktest/internal/backtest/feed"
	"github.com/taquant/ptabacktest/internal/backtest/ledger"
	"github.com/taquant/ptabacktest/internal/backtest/metrics"
	"github.com/taquant/ptabacktest/internal/backtest/strategy"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Result is everything a finished or aborted run produced. On failure the
// slices hold whatever was recorded before the error; they are never nil for
// a run that processed at least one bar.
type Result struct {
	RunID        string
	Status       Status
	Fills        []types.Fill
	EquityCurve  []types.EquityCurvePoint
	ClosedTrades []types.ClosedTrade
	States       []types.LedgerState
	// Summary is None when too few bars were processed to compute metrics.
	Summary optional.Option[types.Summary]
	// Warning explains a None summary on an otherwise completed run.
	Warning optional.Option[string]
}

// Runner drives one backtest: it pulls bars from the feed, asks the strategy
// for intents, turns intents into orders, simulates fills, and settles them
// into the ledger. A runner is single-use.
type Runner struct {
	cfg    backtest.RunConfig
	feed   feed.Feed
	engine *strategy.Engine
	sim    *execution.Simulator
	led    *ledger.Ledger
	log    *logger.Logger

	runID  string
	status Status
	fills  []types.Fill

	// onBar is called after each processed bar, for progress reporting.
	onBar func(done, total int)
}

// New wires a runner from a validated configuration and a feed.
func New(cfg backtest.RunConfig, f feed.Feed, log *logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	engine, err := strategy.NewEngine(strat, cfg.LookbackWindow, log)
	if err != nil {
		return nil, err
	}

	sim, err := execution.NewSimulator(cfg.NewCommission(), cfg.NewSlippage(), cfg.LiquidityCapFraction, cfg.StrictLiquidity, log)
	if err != nil {
		return nil, err
	}

	led, err := ledger.New(cfg.InitialCapital, cfg.Leverage, cfg.ContractSize, log)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		feed:   f,
		engine: engine,
		sim:    sim,
		led:    led,
		log:    log,
		runID:  uuid.NewString(),
		status: StatusInitialized,
	}, nil
}

// RunID returns the run's identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Status returns the run's lifecycle state.
func (r *Runner) Status() Status {
	return r.status
}

// SetProgress registers a callback invoked after every processed bar.
func (r *Runner) SetProgress(fn func(done, total int)) {
	r.onBar = fn
}

// Run executes the backtest to the end of the feed. The context is checked
// between bars; cancellation aborts the run and returns the partial result
// alongside a run-cancelled error. Run may be called once.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.status != StatusInitialized {
		return r.result(), errors.Newf(errors.ErrCodeRunAlreadyDone, "run %s already started", r.runID)
	}

	r.status = StatusRunning
	r.log.Info("backtest started",
		zap.String("run_id", r.runID),
		zap.String("strategy", r.engine.StrategyName()),
		zap.Int("bars", r.feed.Len()))

	total := r.feed.Len()
	history := make([]types.Bar, 0, total)

	for {
		select {
		case <-ctx.Done():
			r.status = StatusFailed
			return r.result(), errors.Wrapf(errors.ErrCodeRunCancelled, ctx.Err(), "run %s cancelled after %d bars", r.runID, len(history))
		default:
		}

		next, err := r.feed.Next()
		if err != nil {
			r.status = StatusFailed
			return r.result(), err
		}

		if next.IsNone() {
			break
		}

		bar := next.Unwrap()
		history = append(history, bar)

		if err := r.processBar(history, bar); err != nil {
			r.status = StatusFailed
			return r.result(), err
		}

		r.led.MarkToMarket(bar)

		if r.onBar != nil {
			r.onBar(len(history), total)
		}
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		if err := r.closeOut(last); err != nil {
			r.status = StatusFailed
			return r.result(), err
		}

		// The close settles after the loop's final mark; refresh the last
		// snapshot so the curve includes the closing fill and its fee.
		r.led.MarkToMarket(last)
	}

	r.status = StatusCompleted

	result := r.result()
	summary, err := metrics.Calculate(r.runID, result.EquityCurve, result.ClosedTrades,
		r.led.TotalFees(), r.led.RealizedPnL(), r.cfg.BarsPerYear)
	if err != nil {
		if errors.IsInsufficientDataError(err) {
			result.Warning = optional.Some(err.Error())
			r.log.Warn("summary skipped", zap.String("run_id", r.runID), zap.Error(err))
			return result, nil
		}
		r.status = StatusFailed
		result.Status = StatusFailed
		return result, err
	}
	result.Summary = optional.Some(summary)

	r.log.Info("backtest completed",
		zap.String("run_id", r.runID),
		zap.Float64("final_equity", summary.FinalEquity),
		zap.Float64("total_return", summary.TotalReturn),
		zap.Int("trades", summary.TradeResult.NumberOfTrades))

	return result, nil
}

// processBar runs one decide-size-execute-settle cycle against the bar at the
// end of history.
func (r *Runner) processBar(history []types.Bar, bar types.Bar) error {
	intent, err := r.engine.Decide(history)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStrategyDecideFailed, "strategy decide failed", err)
	}

	if intent.IsNone() {
		return nil
	}

	return r.submit(intent.Unwrap(), bar)
}

// closeOut flattens any open position against the final bar so the run ends
// with no open exposure.
func (r *Runner) closeOut(last types.Bar) error {
	if r.led.Position().IsFlat() {
		return nil
	}

	intent := types.FlatIntent(types.Reason{
		Reason:  types.IntentReasonEndOfData,
		Message: "closing open position at end of data",
	})

	return r.submit(intent, last)
}

// submit turns an intent into an order, simulates it, and settles the fill.
func (r *Runner) submit(intent types.Intent, bar types.Bar) error {
	params := execution.SizingParams{
		Equity:       r.led.Equity(bar.Close),
		Leverage:     r.cfg.Leverage,
		ContractSize: r.cfg.ContractSize,
		Price:        bar.Close,
	}

	orderOpt, err := execution.OrderFromIntent(intent, r.led.Position(), params, r.engine.StrategyName(), bar.Time)
	if err != nil {
		return err
	}

	if orderOpt.IsNone() {
		return nil
	}

	order := orderOpt.Unwrap()

	fill, err := r.sim.Execute(order, bar)
	if err != nil {
		return err
	}

	fill, err = r.led.Apply(fill, bar)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerApplyFailed, "failed to settle fill", err)
	}

	// Zero-quantity fills are still recorded when annotated, keeping the
	// degradation auditable in the trade log.
	if fill.Quantity > 0 || len(fill.Annotations) > 0 {
		r.fills = append(r.fills, fill)
	}

	return nil
}

// result snapshots the run's outputs in their current state.
func (r *Runner) result() Result {
	return Result{
		RunID:        r.runID,
		Status:       r.status,
		Fills:        r.fills,
		EquityCurve:  r.led.EquityCurve(),
		ClosedTrades: r.led.ClosedTrades(),
		States:       r.led.States(),
		Summary:      optional.None[types.Summary](),
		Warning:      optional.None[string](),
	}
}
