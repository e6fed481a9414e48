package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quotebot.yaml", "Env: dev\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 20, cfg.DefaultLimit)
	assert.Equal(t, dir, cfg.BaseDir())

	// No section files: package defaults apply.
	market := cfg.MarketConfig()
	assert.Equal(t, 60, market.DataLimits.DailyMaxRecords)
	assert.Equal(t, "USDT", market.Crypto.DefaultVsCurrency)
	chartCfg := cfg.ChartConfig()
	assert.Equal(t, []int{5, 10, 20}, chartCfg.MAPeriods)
}

func TestLoadHydratesSections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "market.yaml", `
data_limits:
  daily_max_records: 30
features:
  enable_crypto: false
`)
	writeFile(t, dir, "chart.yaml", `
color_style: green_red
chart_width: 900
`)
	path := writeFile(t, dir, "quotebot.yaml", `
Env: test
DefaultLimit: 15
Market:
  File: market.yaml
Chart:
  File: chart.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.DefaultLimit)

	market := cfg.MarketConfig()
	assert.Equal(t, 30, market.DataLimits.DailyMaxRecords)
	assert.False(t, market.Features.EnableCrypto)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, market.DataLimits.HourlyMaxRecords)

	chartCfg := cfg.ChartConfig()
	assert.Equal(t, "green_red", chartCfg.ColorStyle)
	assert.Equal(t, 900, chartCfg.ChartWidth)
	assert.Equal(t, 800, chartCfg.ChartHeight)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quotebot.yaml", "Env: staging\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env must be one of")
}

func TestLoadRejectsBadSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "market.yaml", "data_cache_ttl: -5\n")
	path := writeFile(t, dir, "quotebot.yaml", `
Market:
  File: market.yaml
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_cache_ttl")
}
