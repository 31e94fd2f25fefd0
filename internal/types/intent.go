package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Direction is the desired exposure of a strategy.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

const (
	IntentReasonSignal        string = "signal"
	IntentReasonStopLoss      string = "stop_loss"
	IntentReasonTakeProfit    string = "take_profit"
	IntentReasonHoldingPeriod string = "holding_period"
	IntentReasonEndOfData     string = "end_of_data"
	IntentReasonResize        string = "resize"
)

// Reason records why a strategy, simulator or ledger produced a value.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// Intent is a strategy's desired position for the current bar. It uses
// target-position semantics: the runner diffs the target against the ledger's
// actual position to derive an order. Intents are produced fresh each bar and
// never persisted.
type Intent struct {
	// Direction of the desired exposure. FLAT means close any open position.
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=LONG SHORT FLAT"`
	// Quantity is the absolute target size in contracts. Ignored for FLAT.
	Quantity optional.Option[float64] `yaml:"quantity" json:"quantity"`
	// CapitalFraction sizes the target as a fraction of current equity when
	// Quantity is not set.
	CapitalFraction optional.Option[float64] `yaml:"capital_fraction" json:"capital_fraction"`
	// Limit, when set, turns the derived order into a limit order.
	Limit optional.Option[float64] `yaml:"limit" json:"limit"`
	// Stop is advisory stop price context carried into the trade log.
	Stop optional.Option[float64] `yaml:"stop" json:"stop"`
	// Reason is why the strategy produced this intent.
	Reason Reason `yaml:"reason" json:"reason"`
}

// Validate validates the Intent struct.
func (i *Intent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(i); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidIntent, "invalid intent", err)
	}

	if i.Quantity.IsSome() && i.Quantity.Unwrap() < 0 {
		return errors.Newf(errors.ErrCodeInvalidIntent, "intent quantity must be non-negative, got %f", i.Quantity.Unwrap())
	}

	if i.CapitalFraction.IsSome() {
		fraction := i.CapitalFraction.Unwrap()
		if fraction < 0 || fraction > 1 {
			return errors.Newf(errors.ErrCodeInvalidIntent, "capital fraction must be within [0, 1], got %f", fraction)
		}
	}

	return nil
}

// FlatIntent returns an intent that closes any open position.
func FlatIntent(reason Reason) Intent {
	return Intent{
		Direction:       DirectionFlat,
		Quantity:        optional.None[float64](),
		CapitalFraction: optional.None[float64](),
		Limit:           optional.None[float64](),
		Stop:            optional.None[float64](),
		Reason:          reason,
	}
}
