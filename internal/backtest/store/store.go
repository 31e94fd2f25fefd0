package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// Store persists run results into an in-memory DuckDB database and exports
// them to Parquet. One store holds the rows of a single run.
type Store struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// New opens an in-memory store and creates its tables.
func New(log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open database", err)
	}

	s := &Store{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			run_id TEXT,
			order_id TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			fee DOUBLE,
			filled_at TIMESTAMP,
			reason TEXT,
			message TEXT,
			strategy_name TEXT,
			annotations TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create fills table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity_curve (
			run_id TEXT,
			time TIMESTAMP,
			equity DOUBLE,
			drawdown DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create equity_curve table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS closed_trades (
			run_id TEXT,
			direction TEXT,
			quantity DOUBLE,
			entry_price DOUBLE,
			exit_price DOUBLE,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			pnl DOUBLE,
			fees DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create closed_trades table", err)
	}

	return nil
}

// SaveFills inserts the run's fills.
func (s *Store) SaveFills(runID string, fills []types.Fill) error {
	for _, fill := range fills {
		annotations := ""
		for i, a := range fill.Annotations {
			if i > 0 {
				annotations += ";"
			}
			annotations += string(a.Kind)
		}

		query := s.sq.
			Insert("fills").
			Columns("run_id", "order_id", "side", "quantity", "price", "fee",
				"filled_at", "reason", "message", "strategy_name", "annotations").
			Values(runID, fill.OrderID, fill.Side, fill.Quantity, fill.Price, fill.Fee,
				fill.Time, fill.Reason.Reason, fill.Reason.Message, fill.StrategyName, annotations).
			RunWith(s.db)

		if _, err := query.Exec(); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to insert fill", err)
		}
	}

	return nil
}

// SaveEquityCurve inserts the run's equity curve points.
func (s *Store) SaveEquityCurve(runID string, curve []types.EquityCurvePoint) error {
	for _, point := range curve {
		query := s.sq.
			Insert("equity_curve").
			Columns("run_id", "time", "equity", "drawdown").
			Values(runID, point.Time, point.Equity, point.Drawdown).
			RunWith(s.db)

		if _, err := query.Exec(); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to insert equity point", err)
		}
	}

	return nil
}

// SaveClosedTrades inserts the run's closed trades.
func (s *Store) SaveClosedTrades(runID string, trades []types.ClosedTrade) error {
	for _, trade := range trades {
		query := s.sq.
			Insert("closed_trades").
			Columns("run_id", "direction", "quantity", "entry_price", "exit_price",
				"entry_time", "exit_time", "pnl", "fees").
			Values(runID, trade.Direction, trade.Quantity, trade.EntryPrice, trade.ExitPrice,
				trade.EntryTime, trade.ExitTime, trade.PnL, trade.Fees).
			RunWith(s.db)

		if _, err := query.Exec(); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to insert closed trade", err)
		}
	}

	return nil
}

// CountFills returns the number of stored fills for a run.
func (s *Store) CountFills(runID string) (int, error) {
	var count int
	err := s.sq.
		Select("COUNT(*)").
		From("fills").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to count fills", err)
	}

	return count, nil
}

// FinalEquity returns the last stored equity point of a run.
func (s *Store) FinalEquity(runID string) (float64, error) {
	var equity float64
	err := s.sq.
		Select("equity").
		From("equity_curve").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("time DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow().
		Scan(&equity)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to read final equity", err)
	}

	return equity, nil
}

// Write exports all tables to Parquet files in the given directory.
func (s *Store) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to create output directory", err)
	}

	// Raw SQL because squirrel has no COPY support.
	for _, table := range []string{"fills", "equity_curve", "closed_trades"} {
		target := filepath.Join(path, table+".parquet")
		if _, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, target)); err != nil {
			return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to export %s to Parquet", table)
		}
	}

	s.log.Info("exported run results to Parquet", zap.String("path", path))

	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
