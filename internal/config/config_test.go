package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.35, cfg.Engine.Volatility)
	assert.Equal(t, 1e-5, cfg.Engine.Epsilon)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  url: postgres://localhost/invest
engine:
  volatility: 0.5
rates:
  to_usd:
    USD: "1"
    EUR: "1.08"
  from_usd:
    USD: "1"
    EUR: "0.9259"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/invest", cfg.Database.URL)
	assert.Equal(t, 0.5, cfg.Engine.Volatility)

	tables := cfg.Rates.Tables()
	assert.True(t, tables.ToUSD["EUR"].Equal(cfg.Rates.ToUSD["EUR"]))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
`)
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_URL", "redis://env:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "redis://env:6379", cfg.Redis.URL)
}

func TestLoad_InvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty port", "server:\n  port: \"\""},
		{"negative volatility", "engine:\n  volatility: -1"},
		{"one-sided rates", "rates:\n  to_usd:\n    USD: \"1\""},
		{"mismatched rate keys", "rates:\n  to_usd:\n    EUR: \"1.08\"\n  from_usd:\n    GBP: \"0.8\""},
	}
	t.Setenv("PORT", "")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestRatesConfig_EmptyFallsBackToDefaults(t *testing.T) {
	tables := RatesConfig{}.Tables()
	assert.Contains(t, tables.ToUSD, "USD")
	assert.Contains(t, tables.ToUSD, "EUR")
}
