package sweep

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/taquant/ptabacktest/internal/backtest"
	"github.com/taquant/ptabacktest/internal/backtest/feed"
	"github.com/taquant/ptabacktest/internal/backtest/runner"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
)

// Variant is one named configuration in a sweep.
type Variant struct {
	Name   string
	Config backtest.RunConfig
}

// Outcome pairs a variant with its run result. Err is set when the variant's
// run failed; the other variants still complete.
type Outcome struct {
	Name   string
	Result runner.Result
	Err    error
}

// Run executes every variant against the same bar series and returns the
// outcomes in variant order. Each variant gets its own feed, ledger, and
// strategy instance, so runs share nothing but the immutable bars.
// Concurrency bounds the number of simultaneous runs; values below 1 mean
// unbounded.
func Run(ctx context.Context, bars []types.Bar, variants []Variant, concurrency int, log *logger.Logger) ([]Outcome, error) {
	outcomes := make([]Outcome, len(variants))

	group, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		group.SetLimit(concurrency)
	}

	for i, variant := range variants {
		group.Go(func() error {
			outcomes[i] = runVariant(ctx, bars, variant, log)
			// Variant failures land in the outcome, not the group, so one bad
			// parameter set does not cancel the rest of the sweep.
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return outcomes, err
	}

	return outcomes, nil
}

func runVariant(ctx context.Context, bars []types.Bar, variant Variant, log *logger.Logger) Outcome {
	f := feed.NewSliceFeedRange(bars, variant.Config.StartTime, variant.Config.EndTime)

	r, err := runner.New(variant.Config, f, log)
	if err != nil {
		return Outcome{Name: variant.Name, Err: err}
	}

	result, err := r.Run(ctx)

	return Outcome{Name: variant.Name, Result: result, Err: err}
}
