package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/internal/config"
	"quotebot-api/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	marketCfg := cfg.MarketConfig()
	return []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Default limit: %d", cfg.DefaultLimit),
		sectionLine("Market config", cfg.Market),
		sectionLine("Chart config", cfg.Chart),
		fmt.Sprintf("Markets: us=%s hk=%s crypto=%s",
			presence(marketCfg.Features.EnableUSStock),
			presence(marketCfg.Features.EnableHKStock),
			presence(marketCfg.Features.EnableCrypto)),
		fmt.Sprintf("Charts: %s, technical analysis: %s",
			presence(marketCfg.Features.EnableChartGeneration),
			presence(marketCfg.Features.EnableTechnicalAnalysis)),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: defaults", name)
	}
}
