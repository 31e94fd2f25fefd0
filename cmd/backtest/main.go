package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taquant/ptabacktest/internal/backtest"
	"github.com/taquant/ptabacktest/internal/backtest/feed"
	"github.com/taquant/ptabacktest/internal/backtest/runner"
	"github.com/taquant/ptabacktest/internal/backtest/store"
	"github.com/taquant/ptabacktest/internal/logger"
	"github.com/taquant/ptabacktest/internal/types"
)

// runAction loads the configuration and data, runs the backtest, and writes
// the results to the output directory.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	outputPath := cmd.String("output")
	strategyName := cmd.String("strategy")

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	cfg := backtest.DefaultConfig()
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if strategyName != "" {
		cfg.Strategy.Name = strategyName
	}

	f, err := loadFeed(dataPath, cfg)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, f, log)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(f.Len()))
	bar.Describe(fmt.Sprintf("Backtesting %s with %s", filepath.Base(dataPath), cfg.Strategy.Name))
	r.SetProgress(func(done, total int) {
		bar.Set(done)
	})

	result, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if err := writeResults(result, outputPath, log); err != nil {
		return err
	}

	if result.Summary.IsSome() {
		summary := result.Summary.Unwrap()
		log.Info("backtest summary",
			zap.Float64("total_return", summary.TotalReturn),
			zap.Float64("max_drawdown", summary.MaxDrawdown),
			zap.Float64("sharpe_ratio", summary.SharpeRatio),
			zap.Int("trades", summary.TradeResult.NumberOfTrades),
			zap.Float64("final_equity", summary.FinalEquity))
	}

	if result.Warning.IsSome() {
		log.Warn("backtest finished with warning", zap.String("warning", result.Warning.Unwrap()))
	}

	return nil
}

// loadFeed picks a loader by file extension and applies the configured time
// window.
func loadFeed(path string, cfg backtest.RunConfig) (feed.Feed, error) {
	var bars []types.Bar
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		bars, err = feed.LoadCSV(path)
	case ".parquet":
		bars, err = feed.LoadDuckDB(path)
	default:
		bars, err = feed.LoadDuckDB(path)
	}
	if err != nil {
		return nil, err
	}

	return feed.NewSliceFeedRange(bars, cfg.StartTime, cfg.EndTime), nil
}

// writeResults persists the run to Parquet plus a YAML summary.
func writeResults(result runner.Result, outputPath string, log *logger.Logger) error {
	s, err := store.New(log)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SaveFills(result.RunID, result.Fills); err != nil {
		return err
	}

	if err := s.SaveEquityCurve(result.RunID, result.EquityCurve); err != nil {
		return err
	}

	if err := s.SaveClosedTrades(result.RunID, result.ClosedTrades); err != nil {
		return err
	}

	if err := s.Write(outputPath); err != nil {
		return err
	}

	if result.Summary.IsSome() {
		summaryPath := filepath.Join(outputPath, "summary.yaml")
		if err := types.WriteSummary(summaryPath, result.Summary.Unwrap()); err != nil {
			return err
		}
	}

	return nil
}

// schemaAction prints the configuration JSON schema.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	cfg := backtest.DefaultConfig()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a PTA futures strategy backtest over historical bars",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest and export the results",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML run configuration",
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar data file (CSV or Parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory for Parquet results and the summary",
						Value:   "results",
					},
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Strategy name, overrides the config",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the run configuration",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
