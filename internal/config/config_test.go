package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/pricing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "AAPL", cfg.Ticker)
	assert.Equal(t, 0.01, cfg.RiskFreeRate)
	assert.Equal(t, 3, cfg.MaxExpirations)

	typ, err := cfg.Type()
	require.NoError(t, err)
	assert.Equal(t, pricing.Call, typ)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
ticker: spy
risk_free_rate: 0.045
option_type: PUT
max_expirations: 6
provider: csv
data_dir: ./data
workers: 8
filter: "moneyness > 0.8 && moneyness < 1.2"
heatmap_expiry: "2025-03-21"
heatmap_match: Higher
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SPY", cfg.Ticker)
	assert.Equal(t, 0.045, cfg.RiskFreeRate)
	assert.Equal(t, "put", cfg.OptionType)
	assert.Equal(t, 6, cfg.MaxExpirations)
	assert.Equal(t, "csv", cfg.Provider)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "moneyness > 0.8 && moneyness < 1.2", cfg.Filter)
	assert.Equal(t, "higher", cfg.HeatmapMatch)
	// untouched fields keep their defaults
	assert.Equal(t, "out", cfg.ReportDir)
	assert.Equal(t, ":8080", cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ticker", func(c *Config) { c.Ticker = "" }},
		{"rate above one", func(c *Config) { c.RiskFreeRate = 1.5 }},
		{"negative rate", func(c *Config) { c.RiskFreeRate = -0.01 }},
		{"bad option type", func(c *Config) { c.OptionType = "straddle" }},
		{"zero expirations", func(c *Config) { c.MaxExpirations = 0 }},
		{"too many expirations", func(c *Config) { c.MaxExpirations = 11 }},
		{"unknown provider", func(c *Config) { c.Provider = "yahoo" }},
		{"csv without data dir", func(c *Config) { c.Provider = "csv" }},
		{"threshold above one", func(c *Config) { c.FailureThreshold = 2 }},
		{"bad heatmap date", func(c *Config) { c.HeatmapExpiry = "03/21/2025" }},
		{"bad heatmap match", func(c *Config) { c.HeatmapMatch = "closest" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "ticker: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "range.yaml", "max_expirations: 42\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "IV_SURFACE_TEST_KEY=from-file\n")
	t.Setenv("IV_SURFACE_TEST_KEY", "")
	os.Unsetenv("IV_SURFACE_TEST_KEY")

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "nope.env"), path))
	assert.Equal(t, "from-file", os.Getenv("IV_SURFACE_TEST_KEY"))
}
