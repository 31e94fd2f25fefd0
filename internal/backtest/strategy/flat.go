package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/types"
)

// Flat never trades. Used as a baseline and in tests.
type Flat struct{}

// NewFlat creates a strategy that never produces an intent.
func NewFlat() *Flat {
	return &Flat{}
}

// Name implements Strategy.
func (f *Flat) Name() string {
	return "flat"
}

// Decide implements Strategy.
func (f *Flat) Decide(history []types.Bar) (optional.Option[types.Intent], error) {
	return optional.None[types.Intent](), nil
}
