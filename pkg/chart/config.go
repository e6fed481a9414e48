package chart

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the chart_style section: panel toggles, overlay periods, candle
// color convention and output geometry.
type Config struct {
	MAPeriods       []int  `yaml:"ma_periods"`
	VolumeMAPeriods []int  `yaml:"volume_ma_periods"`
	ColorStyle      string `yaml:"color_style"`
	ChartWidth      int    `yaml:"chart_width"`
	ChartHeight     int    `yaml:"chart_height"`
	ShowVolume      bool   `yaml:"show_volume"`
	ShowIndicators  bool   `yaml:"show_indicators"`
	FontFile        string `yaml:"font_file"`
}

// DefaultConfig returns the stock chart style.
func DefaultConfig() *Config {
	return &Config{
		MAPeriods:       []int{5, 10, 20},
		VolumeMAPeriods: []int{5, 10},
		ColorStyle:      "red_green",
		ChartWidth:      1200,
		ChartHeight:     800,
		ShowVolume:      true,
		ShowIndicators:  true,
		FontFile:        "msyh.ttf",
	}
}

// LoadConfig reads a chart configuration from disk, layered over defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chart config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read chart config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal chart config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalise caps the overlay counts: three price MAs and two volume MAs fit
// the legend, anything beyond is ignored.
func (c *Config) normalise() {
	if len(c.MAPeriods) > 3 {
		c.MAPeriods = c.MAPeriods[:3]
	}
	if len(c.VolumeMAPeriods) > 2 {
		c.VolumeMAPeriods = c.VolumeMAPeriods[:2]
	}
}

// Validate rejects unusable chart settings.
func (c *Config) Validate() error {
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart config: dimensions must be positive, got %dx%d", c.ChartWidth, c.ChartHeight)
	}
	switch c.ColorStyle {
	case "red_green", "green_red":
	default:
		return fmt.Errorf("chart config: unknown color_style %q", c.ColorStyle)
	}
	for _, p := range c.MAPeriods {
		if p <= 0 {
			return fmt.Errorf("chart config: ma_periods must be positive, got %d", p)
		}
	}
	for _, p := range c.VolumeMAPeriods {
		if p <= 0 {
			return fmt.Errorf("chart config: volume_ma_periods must be positive, got %d", p)
		}
	}
	return nil
}
