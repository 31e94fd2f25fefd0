package feed

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// csvTimestamp parses the time column accepting the formats the upstream
// datasets ship with.
type csvTimestamp struct {
	time.Time
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *csvTimestamp) UnmarshalCSV(value string) error {
	for _, layout := range csvTimeLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			t.Time = parsed

			return nil
		}
	}

	return errors.Newf(errors.ErrCodeDataParseFailed, "cannot parse timestamp %q", value)
}

// csvBarRow is the on-disk row shape. Auxiliary spread columns are pointers
// so absent columns or empty cells stay None on the bar.
type csvBarRow struct {
	Time             csvTimestamp `csv:"time"`
	Open             float64      `csv:"open"`
	High             float64      `csv:"high"`
	Low              float64      `csv:"low"`
	Close            float64      `csv:"close"`
	Volume           float64      `csv:"volume"`
	PXSpread         *float64     `csv:"px_spread,omitempty"`
	ProcessingMargin *float64     `csv:"processing_margin,omitempty"`
	Basis            *float64     `csv:"basis,omitempty"`
}

func (r *csvBarRow) toBar() types.Bar {
	bar := types.Bar{
		Time:             r.Time.Time,
		Open:             r.Open,
		High:             r.High,
		Low:              r.Low,
		Close:            r.Close,
		Volume:           r.Volume,
		PXSpread:         optional.None[float64](),
		ProcessingMargin: optional.None[float64](),
		Basis:            optional.None[float64](),
	}

	if r.PXSpread != nil {
		bar.PXSpread = optional.Some(*r.PXSpread)
	}

	if r.ProcessingMargin != nil {
		bar.ProcessingMargin = optional.Some(*r.ProcessingMargin)
	}

	if r.Basis != nil {
		bar.Basis = optional.Some(*r.Basis)
	}

	return bar
}

// LoadCSV reads a bar series from a CSV file. Column order is free; the
// header names select columns.
func LoadCSV(path string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to open %s", path)
	}
	defer file.Close()

	var rows []*csvBarRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse %s", path)
	}

	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, row.toBar())
	}

	return bars, nil
}

// NewCSVFeed creates a slice feed backed by a CSV file.
func NewCSVFeed(path string) (*SliceFeed, error) {
	bars, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}

	return NewSliceFeed(bars), nil
}
