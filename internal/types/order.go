package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/taquant/ptabacktest/pkg/errors"
)

type Side string

type OrderType string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// AnnotationKind tags a non-fatal degradation recorded on a fill.
type AnnotationKind string

const (
	// AnnotationLiquidityCapped marks a fill whose quantity was capped at the
	// configured fraction of bar volume.
	AnnotationLiquidityCapped AnnotationKind = "liquidity_capped"
	// AnnotationLedgerClipped marks a fill clipped to the maximum quantity the
	// ledger could afford under the leverage limit.
	AnnotationLedgerClipped AnnotationKind = "ledger_clipped"
	// AnnotationZeroVolume marks a zero-quantity fill against a zero-volume bar.
	AnnotationZeroVolume AnnotationKind = "zero_volume"
)

// Annotation is an auditable note attached to a fill. Annotations are never
// silently dropped; they travel with the fill into the trade log.
type Annotation struct {
	Kind    AnnotationKind `yaml:"kind" json:"kind" csv:"kind"`
	Message string         `yaml:"message" json:"message" csv:"message"`
}

// Order is derived from an intent and lives for exactly one fill attempt.
// Orders are never persisted across bars; intents are re-evaluated each bar.
type Order struct {
	ID           string    `yaml:"id" json:"id" csv:"id" validate:"required,uuid"`
	Side         Side      `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type         OrderType `yaml:"type" json:"type" csv:"type" validate:"required,oneof=MARKET LIMIT"`
	Quantity     float64   `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Price        float64   `yaml:"price" json:"price" csv:"price" validate:"gte=0"`
	SubmittedAt  time.Time `yaml:"submitted_at" json:"submitted_at" csv:"submitted_at" validate:"required"`
	Reason       Reason    `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.Type == OrderTypeLimit && o.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "limit order price must be greater than zero, got %f", o.Price)
	}

	return nil
}

// Fill is the simulated executed portion of an order. Quantity may be lower
// than requested (partial or zero under the liquidity model). Immutable once
// created; appended to the trade log.
type Fill struct {
	OrderID      string       `yaml:"order_id" json:"order_id" csv:"order_id"`
	Side         Side         `yaml:"side" json:"side" csv:"side"`
	Quantity     float64      `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price        float64      `yaml:"price" json:"price" csv:"price"`
	Fee          float64      `yaml:"fee" json:"fee" csv:"fee"`
	Time         time.Time    `yaml:"time" json:"time" csv:"time"`
	Reason       Reason       `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string       `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
	Annotations  []Annotation `yaml:"annotations" json:"annotations" csv:"-"`
}

// Annotated returns a copy of the fill with an extra annotation appended.
func (f Fill) Annotated(kind AnnotationKind, message string) Fill {
	annotations := make([]Annotation, 0, len(f.Annotations)+1)
	annotations = append(annotations, f.Annotations...)
	annotations = append(annotations, Annotation{Kind: kind, Message: message})
	f.Annotations = annotations

	return f
}

// HasAnnotation reports whether the fill carries an annotation of the given kind.
func (f Fill) HasAnnotation(kind AnnotationKind) bool {
	for _, a := range f.Annotations {
		if a.Kind == kind {
			return true
		}
	}

	return false
}
