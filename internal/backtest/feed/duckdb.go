package feed

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// auxiliary spread columns are loaded when the dataset carries them.
var auxColumns = []string{"px_spread", "processing_margin", "basis"}

// LoadDuckDB reads a bar series from a CSV or Parquet file through an
// in-memory DuckDB instance. DuckDB handles encoding and type sniffing,
// which the hand-rolled CSV loader does not attempt.
func LoadDuckDB(path string) ([]types.Bar, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "failed to open duckdb", err)
	}
	defer db.Close()

	relation, err := readerFor(path)
	if err != nil {
		return nil, err
	}

	// Create a view over the file so column discovery and the data query
	// share one relation.
	if _, err := db.Exec(fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s;`, relation)); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataQueryFailed, err, "failed to read %s", path)
	}

	available, err := columnSet(db)
	if err != nil {
		return nil, err
	}

	for _, required := range []string{"time", "open", "high", "low", "close", "volume"} {
		if !available[required] {
			return nil, errors.Newf(errors.ErrCodeDataParseFailed, "%s is missing required column %q", path, required)
		}
	}

	columns := []string{"time", "open", "high", "low", "close", "volume"}

	var present []string

	for _, aux := range auxColumns {
		if available[aux] {
			columns = append(columns, aux)
			present = append(present, aux)
		}
	}

	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	rows, err := sq.Select(columns...).From("bars").OrderBy("time ASC").RunWith(db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		aux := make([]sql.NullFloat64, len(present))
		dest := []any{&bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}

		for i := range aux {
			dest = append(dest, &aux[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to scan bar", err)
		}

		bar.PXSpread = optional.None[float64]()
		bar.ProcessingMargin = optional.None[float64]()
		bar.Basis = optional.None[float64]()

		for i, name := range present {
			if !aux[i].Valid {
				continue
			}

			switch name {
			case "px_spread":
				bar.PXSpread = optional.Some(aux[i].Float64)
			case "processing_margin":
				bar.ProcessingMargin = optional.Some(aux[i].Float64)
			case "basis":
				bar.Basis = optional.Some(aux[i].Float64)
			}
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "error iterating bars", err)
	}

	return bars, nil
}

// NewDuckDBFeed creates a slice feed backed by a CSV or Parquet file loaded
// through DuckDB.
func NewDuckDBFeed(path string) (*SliceFeed, error) {
	bars, err := LoadDuckDB(path)
	if err != nil {
		return nil, err
	}

	return NewSliceFeed(bars), nil
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return fmt.Sprintf("read_parquet('%s')", path), nil
	case ".csv":
		return fmt.Sprintf("read_csv_auto('%s')", path), nil
	default:
		return "", errors.Newf(errors.ErrCodeDataParseFailed, "unsupported data file extension: %s", filepath.Ext(path))
	}
}

func columnSet(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT column_name FROM (DESCRIBE SELECT * FROM bars)`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "failed to describe bars", err)
	}
	defer rows.Close()

	available := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "failed to scan column name", err)
		}

		available[strings.ToLower(name)] = true
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataQueryFailed, "error iterating columns", err)
	}

	return available, nil
}
