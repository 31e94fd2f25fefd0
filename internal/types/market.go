package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Bar is one OHLCV observation for a fixed time interval. Bars are immutable
// once produced by a feed.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time" validate:"required"`
	Open   float64   `yaml:"open" json:"open" csv:"open" validate:"required,gt=0"`
	High   float64   `yaml:"high" json:"high" csv:"high" validate:"required,gt=0"`
	Low    float64   `yaml:"low" json:"low" csv:"low" validate:"required,gt=0"`
	Close  float64   `yaml:"close" json:"close" csv:"close" validate:"required,gt=0"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume" validate:"gte=0"`

	// PXSpread is the PX-naphtha spread observed alongside this bar.
	// Only populated for datasets that carry the upstream series.
	PXSpread optional.Option[float64] `yaml:"px_spread" json:"px_spread" csv:"-"`
	// ProcessingMargin is the PTA processing margin in currency per ton.
	ProcessingMargin optional.Option[float64] `yaml:"processing_margin" json:"processing_margin" csv:"-"`
	// Basis is futures price minus spot price.
	Basis optional.Option[float64] `yaml:"basis" json:"basis" csv:"-"`
}

// Validate validates the Bar struct.
func (b *Bar) Validate() error {
	validate := validator.New()
	if err := validate.Struct(b); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidBar, "invalid bar", err)
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar high %.4f is below low %.4f at %s",
			b.High, b.Low, b.Time.Format(time.RFC3339))
	}

	return nil
}

// TypicalPrice returns (high + low + close) / 3.
func (b *Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
