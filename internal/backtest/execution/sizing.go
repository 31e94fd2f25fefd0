package execution

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// SizingParams carries the account context needed to turn an intent into a
// contract quantity.
type SizingParams struct {
	// Equity is the account's current equity.
	Equity float64
	// Leverage multiplies committed margin into notional.
	Leverage float64
	// ContractSize is the units of underlying per contract.
	ContractSize float64
	// Price is the current bar close, the sizing reference.
	Price float64
}

// OrderFromIntent diffs the intent's target position against the current one
// and returns the delta order, or None when the account is already at the
// target. Contract counts are floored to whole contracts.
func OrderFromIntent(intent types.Intent, position types.Position, params SizingParams, strategyName string, at time.Time) (optional.Option[types.Order], error) {
	if params.Price <= 0 {
		return optional.None[types.Order](), errors.Newf(errors.ErrCodeInvalidExecutionPrice,
			"sizing price must be positive, got %f", params.Price)
	}

	if params.ContractSize <= 0 {
		return optional.None[types.Order](), errors.Newf(errors.ErrCodeInvalidContractSize,
			"contract size must be positive, got %f", params.ContractSize)
	}

	target, err := targetQuantity(intent, params)
	if err != nil {
		return optional.None[types.Order](), err
	}

	delta := target - position.Quantity
	if delta == 0 {
		return optional.None[types.Order](), nil
	}

	side := types.SideBuy
	if delta < 0 {
		side = types.SideSell
	}

	orderType := types.OrderTypeMarket
	price := 0.0
	if intent.Limit.IsSome() {
		orderType = types.OrderTypeLimit
		price = intent.Limit.Unwrap()
	}

	order := types.Order{
		ID:           uuid.NewString(),
		Side:         side,
		Type:         orderType,
		Quantity:     math.Abs(delta),
		Price:        price,
		SubmittedAt:  at,
		Reason:       intent.Reason,
		StrategyName: strategyName,
	}

	if err := order.Validate(); err != nil {
		return optional.None[types.Order](), err
	}

	return optional.Some(order), nil
}

// targetQuantity resolves the intent into a signed contract count. Explicit
// quantities win over capital fractions; a fraction sizes notional as
// fraction * equity * leverage.
func targetQuantity(intent types.Intent, params SizingParams) (float64, error) {
	if intent.Direction == types.DirectionFlat {
		return 0, nil
	}

	sign := 1.0
	if intent.Direction == types.DirectionShort {
		sign = -1.0
	}

	if intent.Quantity.IsSome() {
		return sign * math.Floor(intent.Quantity.Unwrap()), nil
	}

	if intent.CapitalFraction.IsNone() {
		return 0, errors.Newf(errors.ErrCodeInvalidIntent,
			"intent for %s must carry a quantity or a capital fraction", intent.Direction)
	}

	margin := intent.CapitalFraction.Unwrap() * params.Equity
	notionalPerContract := params.Price * params.ContractSize
	contracts := math.Floor(margin * params.Leverage / notionalPerContract)
	if contracts < 0 {
		contracts = 0
	}

	return sign * contracts, nil
}
