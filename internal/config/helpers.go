package config

import (
	chartpkg "quotebot-api/pkg/chart"
	"quotebot-api/pkg/confkit"
	marketpkg "quotebot-api/pkg/market"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on
// error. It isolates the market section so tests that only need the data
// source do not have to assemble a full application config.
func MustLoadMarket() *marketpkg.Config {
	cfg, err := marketpkg.LoadConfig(confkit.MustProjectPath("etc/market.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// MustLoadChart loads etc/chart.yaml from the project root and panics on error.
func MustLoadChart() *chartpkg.Config {
	cfg, err := chartpkg.LoadConfig(confkit.MustProjectPath("etc/chart.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}
