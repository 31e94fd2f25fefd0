// Package strategy defines the pluggable strategy capability and the engine
// that evaluates it against the visible bar history.
//
// A strategy is polymorphic over a single capability: Decide(history) returns
// zero or one Intent. Intents use target-position semantics: the runner diffs
// the target against the actual position, so a strategy never needs fill
// feedback to express entries, exits or resizes.
package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
	"go.uber.org/zap"
)

// Strategy is the single-capability contract every strategy implements.
// The history slice covers bars up to and including the current one; the
// engine guarantees no bar beyond the current simulated time is visible.
type Strategy interface {
	// Name returns the strategy's display name.
	Name() string
	// Decide inspects the visible history and returns the desired position
	// for the current bar, or None for no change.
	Decide(history []types.Bar) (optional.Option[types.Intent], error)
}

// Func adapts a plain function to the Strategy interface.
type Func struct {
	StrategyName string
	DecideFunc   func(history []types.Bar) (optional.Option[types.Intent], error)
}

// Name implements Strategy.
func (f Func) Name() string {
	return f.StrategyName
}

// Decide implements Strategy.
func (f Func) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	return f.DecideFunc(history)
}

// Engine evaluates a strategy once per bar. It enforces the no-lookahead
// invariant and the bounded look-back window.
type Engine struct {
	strategy Strategy
	window   int
	log      *logger.Logger
}

// NewEngine creates an engine for the given strategy. window bounds the
// history passed to Decide; zero means unbounded.
func NewEngine(s Strategy, window int, log *logger.Logger) (*Engine, error) {
	if s == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "strategy must not be nil")
	}

	if window < 0 {
		return nil, errors.NewConfigurationErrorf("lookback_window", "must be non-negative, got %d", window)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		strategy: s,
		window:   window,
		log:      log,
	}, nil
}

// StrategyName returns the wrapped strategy's name.
func (e *Engine) StrategyName() string {
	return e.strategy.Name()
}

// Decide evaluates the strategy against the visible history. The caller must
// pass the history up to and including the current bar only; the engine
// additionally clips it to the configured look-back window and re-slices with
// zero spare capacity so the strategy cannot reach past the current bar even
// by re-slicing.
func (e *Engine) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	if len(history) == 0 {
		return optional.None[types.Intent](), nil
	}

	visible := history
	if e.window > 0 && len(visible) > e.window {
		visible = visible[len(visible)-e.window:]
	}

	visible = visible[:len(visible):len(visible)]

	intent, err := e.strategy.Decide(visible)
	if err != nil {
		return optional.None[types.Intent](), errors.Wrapf(errors.ErrCodeStrategyDecideFailed, err,
			"strategy %s failed at bar %s", e.strategy.Name(), history[len(history)-1].Time)
	}

	if intent.IsNone() {
		return intent, nil
	}

	value := intent.Unwrap()
	if err := value.Validate(); err != nil {
		return optional.None[types.Intent](), err
	}

	e.log.Debug("strategy produced intent",
		zap.String("strategy", e.strategy.Name()),
		zap.String("direction", string(value.Direction)),
		zap.String("reason", value.Reason.Reason),
	)

	return intent, nil
}
