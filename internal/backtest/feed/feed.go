// Package feed supplies ordered, timestamped bars to the backtest runner.
// A feed is a lazy, finite, restartable cursor over historical data. Every
// implementation validates that timestamps are strictly increasing and fails
// with a DataOrderError otherwise.
package feed

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Feed is a pure iterator abstraction over historical bar data.
type Feed interface {
	// Next returns the next bar, or None at end of stream. Returns a
	// DataOrderError when a bar's timestamp is not strictly greater than its
	// predecessor's.
	Next() (optional.Option[types.Bar], error)
	// Reset rewinds the cursor so the sequence can be replayed from the start.
	Reset() error
	// Len returns the total number of bars the feed produces per pass.
	Len() int
}

// SliceFeed serves bars from an in-memory slice. It is the backing feed for
// the CSV and DuckDB loaders and the primary feed used in tests.
type SliceFeed struct {
	bars   []types.Bar
	cursor int
}

// NewSliceFeed creates a feed over the given bars. The bars are used as-is;
// ordering is validated lazily as the cursor advances.
func NewSliceFeed(bars []types.Bar) *SliceFeed {
	return &SliceFeed{
		bars:   bars,
		cursor: 0,
	}
}

// NewSliceFeedRange creates a feed restricted to bars within [start, end].
// Either bound may be None for an open interval.
func NewSliceFeedRange(bars []types.Bar, start optional.Option[time.Time], end optional.Option[time.Time]) *SliceFeed {
	filtered := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		if start.IsSome() && bar.Time.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && bar.Time.After(end.Unwrap()) {
			continue
		}

		filtered = append(filtered, bar)
	}

	return NewSliceFeed(filtered)
}

// Next implements Feed.
func (f *SliceFeed) Next() (optional.Option[types.Bar], error) {
	if f.cursor >= len(f.bars) {
		return optional.None[types.Bar](), nil
	}

	bar := f.bars[f.cursor]
	if err := bar.Validate(); err != nil {
		return optional.None[types.Bar](), errors.Wrapf(errors.ErrCodeInvalidBar, err, "bar %d failed validation", f.cursor)
	}

	if f.cursor > 0 {
		prev := f.bars[f.cursor-1]
		if !bar.Time.After(prev.Time) {
			return optional.None[types.Bar](), errors.NewDataOrderError(f.cursor, prev.Time, bar.Time)
		}
	}

	f.cursor++

	return optional.Some(bar), nil
}

// Reset implements Feed.
func (f *SliceFeed) Reset() error {
	f.cursor = 0

	return nil
}

// Len implements Feed.
func (f *SliceFeed) Len() int {
	return len(f.bars)
}
