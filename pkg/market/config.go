package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quotebot-api/pkg/confkit"
)

// Config carries the data-source tuning knobs: per-market feature flags,
// per-granularity record caps, timeout budgets and crypto provider settings.
// All durations are integer seconds in the file.
type Config struct {
	DataCacheTTL int `yaml:"data_cache_ttl"`

	DataLimits struct {
		DailyMaxRecords    int `yaml:"daily_max_records"`
		HourlyMaxRecords   int `yaml:"hourly_max_records"`
		MinutelyMaxRecords int `yaml:"minutely_max_records"`
		DefaultDaysBack    int `yaml:"default_days_back"`
	} `yaml:"data_limits"`

	TimeoutSettings struct {
		USStockTimeout int `yaml:"us_stock_timeout"`
		GeneralTimeout int `yaml:"general_timeout"`
		MaxRetries     int `yaml:"max_retries"`
	} `yaml:"timeout_settings"`

	Features struct {
		EnableUSStock           bool `yaml:"enable_us_stock"`
		EnableHKStock           bool `yaml:"enable_hk_stock"`
		EnableChartGeneration   bool `yaml:"enable_chart_generation"`
		EnableTechnicalAnalysis bool `yaml:"enable_technical_analysis"`
		EnableCrypto            bool `yaml:"enable_crypto"`
	} `yaml:"features"`

	Crypto struct {
		BinanceBaseURL        string   `yaml:"binance_base_url"`
		CryptoTimeout         int      `yaml:"crypto_timeout"`
		DefaultVsCurrency     string   `yaml:"default_vs_currency"`
		SupportedVsCurrencies []string `yaml:"supported_vs_currencies"`
	} `yaml:"crypto"`

	EnableAutoCorrection bool `yaml:"enable_auto_correction"`
}

// DefaultConfig returns the stock configuration used when no file overrides it.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.DataCacheTTL = 60
	cfg.DataLimits.DailyMaxRecords = 60
	cfg.DataLimits.HourlyMaxRecords = 100
	cfg.DataLimits.MinutelyMaxRecords = 200
	cfg.DataLimits.DefaultDaysBack = 90
	cfg.TimeoutSettings.USStockTimeout = 25
	cfg.TimeoutSettings.GeneralTimeout = 30
	cfg.TimeoutSettings.MaxRetries = 2
	cfg.Features.EnableUSStock = true
	cfg.Features.EnableHKStock = true
	cfg.Features.EnableChartGeneration = true
	cfg.Features.EnableTechnicalAnalysis = true
	cfg.Features.EnableCrypto = true
	cfg.Crypto.BinanceBaseURL = "https://api.binance.com"
	cfg.Crypto.CryptoTimeout = 15
	cfg.Crypto.DefaultVsCurrency = "USDT"
	cfg.Crypto.SupportedVsCurrencies = []string{"USDT", "BUSD", "BTC", "ETH", "BNB"}
	cfg.EnableAutoCorrection = true
	return cfg
}

// LoadConfig reads a market configuration from disk, layered over defaults.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	c.Crypto.BinanceBaseURL = strings.TrimSpace(os.ExpandEnv(c.Crypto.BinanceBaseURL))
	c.Crypto.DefaultVsCurrency = strings.ToUpper(strings.TrimSpace(c.Crypto.DefaultVsCurrency))
	for i, cur := range c.Crypto.SupportedVsCurrencies {
		c.Crypto.SupportedVsCurrencies[i] = strings.ToUpper(strings.TrimSpace(cur))
	}
}

// Validate rejects configurations the source cannot operate under.
func (c *Config) Validate() error {
	if c.DataCacheTTL <= 0 {
		return fmt.Errorf("market config: data_cache_ttl must be positive, got %d", c.DataCacheTTL)
	}
	if c.DataLimits.DailyMaxRecords <= 0 || c.DataLimits.HourlyMaxRecords <= 0 || c.DataLimits.MinutelyMaxRecords <= 0 {
		return fmt.Errorf("market config: data_limits record caps must be positive")
	}
	if c.DataLimits.DefaultDaysBack <= 0 {
		return fmt.Errorf("market config: default_days_back must be positive, got %d", c.DataLimits.DefaultDaysBack)
	}
	if c.TimeoutSettings.GeneralTimeout <= 0 || c.TimeoutSettings.USStockTimeout <= 0 {
		return fmt.Errorf("market config: timeouts must be positive")
	}
	if c.TimeoutSettings.MaxRetries < 0 {
		return fmt.Errorf("market config: max_retries must not be negative, got %d", c.TimeoutSettings.MaxRetries)
	}
	if c.Features.EnableCrypto {
		if c.Crypto.BinanceBaseURL == "" {
			return fmt.Errorf("market config: crypto enabled but binance_base_url empty")
		}
		if c.Crypto.DefaultVsCurrency == "" {
			return fmt.Errorf("market config: crypto enabled but default_vs_currency empty")
		}
	}
	return nil
}

// GeneralTimeout returns the default provider budget as a duration.
func (c *Config) GeneralTimeout() time.Duration {
	return time.Duration(c.TimeoutSettings.GeneralTimeout) * time.Second
}

// USStockTimeout returns the US history budget as a duration.
func (c *Config) USStockTimeout() time.Duration {
	return time.Duration(c.TimeoutSettings.USStockTimeout) * time.Second
}

// CryptoTimeout returns the Binance call budget as a duration.
func (c *Config) CryptoTimeout() time.Duration {
	return time.Duration(c.Crypto.CryptoTimeout) * time.Second
}

// CacheTTL returns the spot-table cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.DataCacheTTL) * time.Second
}
