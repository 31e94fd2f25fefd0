package strategy

import (
	"gopkg.in/yaml.v3"

	"github.com/taquant/ptabacktest/pkg/errors"
)

// Config selects a strategy by name and carries its parameters as raw YAML,
// decoded into the strategy's own parameter struct on construction.
type Config struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Params map[string]any `yaml:"params" json:"params"`
}

type smaCrossoverParams struct {
	ShortPeriod     int     `yaml:"short_period"`
	LongPeriod      int     `yaml:"long_period"`
	CapitalFraction float64 `yaml:"capital_fraction"`
}

type meanReversionParams struct {
	Period          int     `yaml:"period"`
	EntryStdDev     float64 `yaml:"entry_std_dev"`
	CapitalFraction float64 `yaml:"capital_fraction"`
}

type breakoutParams struct {
	EntryPeriod     int     `yaml:"entry_period"`
	ExitPeriod      int     `yaml:"exit_period"`
	CapitalFraction float64 `yaml:"capital_fraction"`
}

// FromConfig builds the named strategy. Unknown names and malformed
// parameters return configuration errors.
func FromConfig(cfg Config) (Strategy, error) {
	switch cfg.Name {
	case "flat":
		return &Flat{}, nil

	case "sma_crossover":
		params := smaCrossoverParams{ShortPeriod: 5, LongPeriod: 20, CapitalFraction: 0.1}
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, err
		}
		return NewSMACrossover(params.ShortPeriod, params.LongPeriod, params.CapitalFraction)

	case "mean_reversion":
		params := meanReversionParams{Period: 20, EntryStdDev: 2, CapitalFraction: 0.1}
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, err
		}
		return NewMeanReversion(params.Period, params.EntryStdDev, params.CapitalFraction)

	case "breakout":
		params := breakoutParams{EntryPeriod: 20, ExitPeriod: 10, CapitalFraction: 0.1}
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, err
		}
		return NewBreakout(params.EntryPeriod, params.ExitPeriod, params.CapitalFraction)

	case "px_spread":
		params := DefaultPXSpreadConfig()
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, err
		}
		return NewPXSpread(params)

	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy %q", cfg.Name)
	}
}

// Names lists the registered strategy names.
func Names() []string {
	return []string{"flat", "sma_crossover", "mean_reversion", "breakout", "px_spread"}
}

// decodeParams re-marshals the raw parameter map into the strategy's typed
// parameter struct so defaults survive for keys the config omits.
func decodeParams(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}

	buf, err := yaml.Marshal(raw)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidStrategyConfig, "failed to encode strategy params", err)
	}

	if err := yaml.Unmarshal(buf, out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidStrategyConfig, "failed to decode strategy params", err)
	}

	return nil
}
