package backtest

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/taquant/ptabacktest/internal/backtest/execution"
	"github.com/taquant/ptabacktest/internal/backtest/execution/commission"
	"github.com/taquant/ptabacktest/internal/backtest/strategy"
	"github.com/taquant/ptabacktest/pkg/errors"
)

// CommissionConfig selects and parameterizes the commission model.
type CommissionConfig struct {
	Scheme commission.Scheme `yaml:"scheme" json:"scheme" jsonschema:"title=Scheme,description=Commission model to apply per fill"`
	// PerLot is the flat fee per contract for the per_contract scheme.
	PerLot float64 `yaml:"per_lot" json:"per_lot" jsonschema:"title=Per Lot,description=Flat fee per contract,minimum=0"`
	// Rate is the fraction of notional for the proportional scheme.
	Rate float64 `yaml:"rate" json:"rate" jsonschema:"title=Rate,description=Fraction of traded notional charged as fee,minimum=0"`
	// Minimum floors the proportional fee per fill.
	Minimum float64 `yaml:"minimum" json:"minimum" jsonschema:"title=Minimum,description=Minimum fee per fill,minimum=0"`
}

// SlippageConfig selects and parameterizes the slippage model.
type SlippageConfig struct {
	Model execution.SlippageModel `yaml:"model" json:"model" jsonschema:"title=Model,description=Slippage model applied to execution prices"`
	// Coefficient scales volume impact slippage.
	Coefficient float64 `yaml:"coefficient" json:"coefficient" jsonschema:"title=Coefficient,description=Impact coefficient for the volume_impact model,minimum=0"`
	// Exponent shapes volume impact slippage.
	Exponent float64 `yaml:"exponent" json:"exponent" jsonschema:"title=Exponent,description=Impact exponent for the volume_impact model,minimum=0"`
	// StdDevFraction is the impact standard deviation for the random model.
	StdDevFraction float64 `yaml:"std_dev_fraction" json:"std_dev_fraction" jsonschema:"title=StdDev Fraction,description=Impact standard deviation as a fraction of price,minimum=0"`
	// Seed makes the random model reproducible.
	Seed int64 `yaml:"seed" json:"seed" jsonschema:"title=Seed,description=Seed for the random model"`
}

// RunConfig is the full configuration of one backtest run.
type RunConfig struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital for the backtest,minimum=0"`
	// Leverage multiplies committed margin into notional exposure.
	Leverage float64 `yaml:"leverage" json:"leverage" validate:"gte=1" jsonschema:"title=Leverage,description=Futures leverage,minimum=1"`
	// ContractSize is units of underlying per contract.
	ContractSize float64 `yaml:"contract_size" json:"contract_size" validate:"gt=0" jsonschema:"title=Contract Size,description=Units of underlying per contract,minimum=0"`
	// LiquidityCapFraction bounds one fill to this fraction of bar volume.
	// Zero disables the cap.
	LiquidityCapFraction float64 `yaml:"liquidity_cap_fraction" json:"liquidity_cap_fraction" validate:"gte=0,lte=1" jsonschema:"title=Liquidity Cap Fraction,description=Maximum fraction of bar volume one fill may take,minimum=0,maximum=1"`
	// StrictLiquidity fails orders over the cap instead of partially filling.
	StrictLiquidity bool `yaml:"strict_liquidity" json:"strict_liquidity" jsonschema:"title=Strict Liquidity,description=Fail orders over the liquidity cap instead of partially filling"`
	// LookbackWindow bounds the history passed to the strategy. Zero means
	// unbounded.
	LookbackWindow int `yaml:"lookback_window" json:"lookback_window" validate:"gte=0" jsonschema:"title=Lookback Window,description=Maximum bars of history visible to the strategy,minimum=0"`
	// BarsPerYear annualizes returns and Sharpe. 252 for daily bars.
	BarsPerYear int `yaml:"bars_per_year" json:"bars_per_year" validate:"gt=0" jsonschema:"title=Bars Per Year,description=Bar count used to annualize returns,minimum=1"`

	Commission CommissionConfig `yaml:"commission" json:"commission" jsonschema:"title=Commission"`
	Slippage   SlippageConfig   `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage"`
	Strategy   strategy.Config  `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy"`

	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the simulated window"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the simulated window"`
}

// UnmarshalYAML implements custom unmarshaling so optional times decode from
// plain YAML timestamps.
func (c *RunConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCapital       float64          `yaml:"initial_capital"`
		Leverage             float64          `yaml:"leverage"`
		ContractSize         float64          `yaml:"contract_size"`
		LiquidityCapFraction float64          `yaml:"liquidity_cap_fraction"`
		StrictLiquidity      bool             `yaml:"strict_liquidity"`
		LookbackWindow       int              `yaml:"lookback_window"`
		BarsPerYear          int              `yaml:"bars_per_year"`
		Commission           CommissionConfig `yaml:"commission"`
		Slippage             SlippageConfig   `yaml:"slippage"`
		Strategy             strategy.Config  `yaml:"strategy"`
		StartTime            *time.Time       `yaml:"start_time"`
		EndTime              *time.Time       `yaml:"end_time"`
	}

	config := Config{
		Leverage:     1,
		ContractSize: 1,
		BarsPerYear:  252,
	}
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCapital = config.InitialCapital
	c.Leverage = config.Leverage
	c.ContractSize = config.ContractSize
	c.LiquidityCapFraction = config.LiquidityCapFraction
	c.StrictLiquidity = config.StrictLiquidity
	c.LookbackWindow = config.LookbackWindow
	c.BarsPerYear = config.BarsPerYear
	c.Commission = config.Commission
	c.Slippage = config.Slippage
	c.Strategy = config.Strategy
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks the configuration before a run starts.
func (c *RunConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid run configuration", err)
	}

	switch c.Commission.Scheme {
	case commission.SchemeZero, commission.SchemePerContract, commission.SchemeProportional, "":
	default:
		return errors.NewConfigurationErrorf("commission.scheme", "unknown commission scheme %q", c.Commission.Scheme)
	}

	switch c.Slippage.Model {
	case execution.SlippageNone, execution.SlippageVolumeImpact, execution.SlippageRandom, "":
	default:
		return errors.NewConfigurationErrorf("slippage.model", "unknown slippage model %q", c.Slippage.Model)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.NewConfigurationError("end_time", "end time must not precede start time")
	}

	if c.Strategy.Name == "" {
		return errors.NewConfigurationError("strategy.name", "a strategy name is required")
	}

	return nil
}

// NewCommission builds the configured commission model.
func (c *RunConfig) NewCommission() commission.Commission {
	return commission.ForScheme(c.Commission.Scheme, c.Commission.PerLot, c.Commission.Rate, c.ContractSize, c.Commission.Minimum)
}

// NewSlippage builds the configured slippage model.
func (c *RunConfig) NewSlippage() execution.Slippage {
	return execution.ForSlippageModel(c.Slippage.Model, c.Slippage.Coefficient, c.Slippage.Exponent, c.Slippage.StdDevFraction, c.Slippage.Seed)
}

// GenerateSchema generates a JSON schema for the RunConfig.
func (c *RunConfig) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if strings.Contains(t.String(), "commission.Scheme") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission.AllSchemes,
				}
			}
			if strings.Contains(t.String(), "execution.SlippageModel") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: execution.AllSlippageModels,
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-run-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the RunConfig.
func (c *RunConfig) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a runnable configuration with the exchange's PTA
// contract terms.
func DefaultConfig() RunConfig {
	return RunConfig{
		InitialCapital:       1_000_000,
		Leverage:             5,
		ContractSize:         5,
		LiquidityCapFraction: 0,
		StrictLiquidity:      false,
		LookbackWindow:       0,
		BarsPerYear:          252,
		Commission: CommissionConfig{
			Scheme: commission.SchemePerContract,
			PerLot: 3.3,
		},
		Slippage: SlippageConfig{
			Model: execution.SlippageNone,
		},
		Strategy: strategy.Config{
			Name: "px_spread",
		},
		StartTime: optional.None[time.Time](),
		EndTime:   optional.None[time.Time](),
	}
}

// TestConfig returns a small configuration for tests.
func TestConfig() RunConfig {
	cfg := DefaultConfig()
	cfg.InitialCapital = 100_000
	cfg.Leverage = 1
	cfg.ContractSize = 1
	cfg.Commission = CommissionConfig{Scheme: commission.SchemeZero}
	cfg.Strategy = strategy.Config{Name: "flat"}

	return cfg
}
