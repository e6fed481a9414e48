package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	chartpkg "quotebot-api/pkg/chart"
	"quotebot-api/pkg/confkit"
	marketpkg "quotebot-api/pkg/market"
)

// Config is the top-level application configuration. The market and chart
// sections live in their own files and are hydrated after the main file
// loads; when a section is absent its package defaults apply.
type Config struct {
	// Env indicates the running environment: test | dev | prod.
	Env string       `json:",default=dev"`
	Log logx.LogConf `json:",optional"`

	// DefaultLimit is the record count used when a command omits one.
	DefaultLimit int `json:",default=20"`

	Market confkit.Section[marketpkg.Config] `json:",optional"`
	Chart  confkit.Section[chartpkg.Config]  `json:",optional"`

	mainPath string
	baseDir  string
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test" || c.Env == ""
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "test", "dev", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "test"
		}
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}
	if c.DefaultLimit <= 0 {
		return errors.New("config: defaultLimit must be positive")
	}
	return nil
}

func (c *Config) hydrateSections() error {
	base := c.baseDir

	if err := c.Market.Hydrate(base, marketpkg.LoadConfig); err != nil {
		return fmt.Errorf("load market config: %w", err)
	}
	if err := c.Chart.Hydrate(base, chartpkg.LoadConfig); err != nil {
		return fmt.Errorf("load chart config: %w", err)
	}
	return nil
}

// MarketConfig returns the hydrated market section, or package defaults when
// no section file was configured.
func (c *Config) MarketConfig() *marketpkg.Config {
	if c.Market.Value != nil {
		return c.Market.Value
	}
	return marketpkg.DefaultConfig()
}

// ChartConfig returns the hydrated chart section, or package defaults.
func (c *Config) ChartConfig() *chartpkg.Config {
	if c.Chart.Value != nil {
		return c.Chart.Value
	}
	return chartpkg.DefaultConfig()
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
