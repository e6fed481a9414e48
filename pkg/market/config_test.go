package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReaderLayersDefaults(t *testing.T) {
	yaml := `
data_limits:
  daily_max_records: 30
features:
  enable_hk_stock: false
crypto:
  default_vs_currency: busd
  supported_vs_currencies: [usdt, busd]
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.DataLimits.DailyMaxRecords)
	assert.False(t, cfg.Features.EnableHKStock)

	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.DataLimits.HourlyMaxRecords)
	assert.Equal(t, 60, cfg.DataCacheTTL)
	assert.True(t, cfg.Features.EnableUSStock)

	// Currencies are normalised to upper case.
	assert.Equal(t, "BUSD", cfg.Crypto.DefaultVsCurrency)
	assert.Equal(t, []string{"USDT", "BUSD"}, cfg.Crypto.SupportedVsCurrencies)
}

func TestLoadConfigFromReaderExpandsEnv(t *testing.T) {
	t.Setenv("TEST_BINANCE_URL", "https://mirror.example.com")
	yaml := "crypto:\n  binance_base_url: ${TEST_BINANCE_URL}\n"

	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com", cfg.Crypto.BinanceBaseURL)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative cache ttl",
			mutate:  func(c *Config) { c.DataCacheTTL = -5 },
			wantErr: "data_cache_ttl",
		},
		{
			name:    "zero record cap",
			mutate:  func(c *Config) { c.DataLimits.HourlyMaxRecords = 0 },
			wantErr: "record caps",
		},
		{
			name:    "zero days back",
			mutate:  func(c *Config) { c.DataLimits.DefaultDaysBack = 0 },
			wantErr: "default_days_back",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.TimeoutSettings.GeneralTimeout = 0 },
			wantErr: "timeouts",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.TimeoutSettings.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "crypto enabled without base url",
			mutate:  func(c *Config) { c.Crypto.BinanceBaseURL = "" },
			wantErr: "binance_base_url",
		},
		{
			name: "crypto disabled tolerates empty url",
			mutate: func(c *Config) {
				c.Features.EnableCrypto = false
				c.Crypto.BinanceBaseURL = ""
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.GeneralTimeout())
	assert.Equal(t, 25*time.Second, cfg.USStockTimeout())
	assert.Equal(t, 15*time.Second, cfg.CryptoTimeout())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
}
