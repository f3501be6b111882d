// Package config loads the engine's runtime configuration from a YAML file
// and environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/regionspay/invest-engine/internal/fx"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Rates    RatesConfig    `yaml:"rates"`
}

// ServerConfig contains HTTP listener parameters.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection parameters. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig contains cache parameters. An empty URL disables caching.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// EngineConfig tunes lifecycle behavior.
type EngineConfig struct {
	// Volatility scales daily accrual randomness; 0 selects the default.
	Volatility float64 `yaml:"volatility"`

	// Epsilon is the full-withdrawal near-equality tolerance.
	Epsilon float64 `yaml:"epsilon"`

	// SignificantGrowthPercent triggers notifications for large daily moves.
	SignificantGrowthPercent float64 `yaml:"significant_growth_percent"`
}

// RatesConfig is the exchange-rate snapshot loaded at startup. Rates are
// quoted against USD: to_usd[c] USD per unit of c, from_usd[c] units of c
// per USD.
type RatesConfig struct {
	ToUSD   map[string]decimal.Decimal `yaml:"to_usd"`
	FromUSD map[string]decimal.Decimal `yaml:"from_usd"`
}

// Tables converts the snapshot into converter rate tables. Empty tables fall
// back to the built-in defaults.
func (r RatesConfig) Tables() fx.Rates {
	if len(r.ToUSD) == 0 || len(r.FromUSD) == 0 {
		return fx.DefaultRates()
	}
	return fx.Rates{ToUSD: r.ToUSD, FromUSD: r.FromUSD}
}

// Load reads configuration from path, falling back to defaults when path is
// empty, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Engine.Volatility < 0 {
		return fmt.Errorf("engine.volatility must not be negative")
	}
	if c.Engine.Epsilon < 0 {
		return fmt.Errorf("engine.epsilon must not be negative")
	}
	if c.Engine.SignificantGrowthPercent < 0 {
		return fmt.Errorf("engine.significant_growth_percent must not be negative")
	}
	if (len(c.Rates.ToUSD) == 0) != (len(c.Rates.FromUSD) == 0) {
		return fmt.Errorf("rates.to_usd and rates.from_usd must be set together")
	}
	for code := range c.Rates.ToUSD {
		if _, ok := c.Rates.FromUSD[code]; !ok {
			return fmt.Errorf("rates: %s has to_usd but no from_usd entry", code)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Engine: EngineConfig{
			Volatility:               0.35,
			Epsilon:                  1e-5,
			SignificantGrowthPercent: 2,
		},
	}
}
