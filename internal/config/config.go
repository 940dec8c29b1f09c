// Package config provides configuration management for the trading desk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"trading-desk/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig         `mapstructure:"database"`
	Market   MarketConfig           `mapstructure:"market"`
	House    HouseConfig            `mapstructure:"house"`
	Targets  []TargetPositionConfig `mapstructure:"targets"`
	Logging  logging.Config         `mapstructure:"logging"`
}

// DatabaseConfig holds ledger storage configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MarketConfig holds the static market universe: the tradable instruments
// and each liquidity provider's instrument set. Both are supplied once at
// startup and do not change at runtime.
type MarketConfig struct {
	Instruments []string         `mapstructure:"instruments"`
	TickPace    int              `mapstructure:"tick_pace"`
	PriceStep   float64          `mapstructure:"price_step"`
	Providers   []ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig describes one simulated liquidity provider.
type ProviderConfig struct {
	Name       string             `mapstructure:"name"`
	SeedPrices map[string]float64 `mapstructure:"seed_prices"`
}

// HouseConfig identifies the implicit counterparty to every client trade.
type HouseConfig struct {
	ClientID string  `mapstructure:"client_id"`
	Name     string  `mapstructure:"name"`
	Balance  float64 `mapstructure:"balance"`
}

// TargetPositionConfig seeds the risk check's target book.
type TargetPositionConfig struct {
	InstrumentID string  `mapstructure:"instrument_id"`
	Quantity     float64 `mapstructure:"quantity"`
	Policy       string  `mapstructure:"policy"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradedesk"
	}
	return filepath.Join(home, ".config", "tradedesk")
}

// Default returns the built-in configuration: three providers with disjoint
// instrument universes and a modest tradable set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultConfigDir(), "desk.db"),
		},
		Market: MarketConfig{
			Instruments: []string{"GME", "AAPL", "TSLA", "MSFT", "AMZN", "NVDA"},
			TickPace:    20,
			PriceStep:   0.25,
			Providers: []ProviderConfig{
				{Name: "JPMorgan", SeedPrices: map[string]float64{"GME": 20, "AAPL": 150}},
				{Name: "Goldman", SeedPrices: map[string]float64{"TSLA": 200, "MSFT": 300}},
				{Name: "Citadel", SeedPrices: map[string]float64{"AMZN": 130, "NVDA": 450}},
			},
		},
		House: HouseConfig{
			ClientID: "house",
			Name:     "House",
			Balance:  1_000_000,
		},
		Targets: []TargetPositionConfig{
			{InstrumentID: "GME", Quantity: 100, Policy: "FOK"},
			{InstrumentID: "AAPL", Quantity: 50, Policy: "GTC"},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from configDir, falling back to defaults for
// anything the file does not set. A missing config file is not an error.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("market.instruments", cfg.Market.Instruments)
	v.SetDefault("market.tick_pace", cfg.Market.TickPace)
	v.SetDefault("market.price_step", cfg.Market.PriceStep)
	v.SetDefault("house.client_id", cfg.House.ClientID)
	v.SetDefault("house.name", cfg.House.Name)
	v.SetDefault("house.balance", cfg.House.Balance)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.filepath", cfg.Logging.FilePath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// The provider list only comes from the file; restore the defaults when
	// the file does not define any.
	if len(cfg.Market.Providers) == 0 {
		cfg.Market.Providers = Default().Market.Providers
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = Default().Targets
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Market.Instruments) == 0 {
		return fmt.Errorf("no tradable instruments configured")
	}
	if c.Market.TickPace <= 0 {
		return fmt.Errorf("tick pace must be positive, got %d", c.Market.TickPace)
	}
	if c.Market.PriceStep <= 0 {
		return fmt.Errorf("price step must be positive, got %v", c.Market.PriceStep)
	}
	if c.House.ClientID == "" {
		return fmt.Errorf("house client id must not be empty")
	}
	seen := make(map[string]string)
	for _, p := range c.Market.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		for instrument := range p.SeedPrices {
			if prev, ok := seen[instrument]; ok {
				return fmt.Errorf("instrument %s configured for both %s and %s", instrument, prev, p.Name)
			}
			seen[instrument] = p.Name
		}
	}
	return nil
}
