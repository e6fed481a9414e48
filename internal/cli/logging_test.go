package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"quotebot-api/internal/config"
)

func TestConfigSummaryLines(t *testing.T) {
	cfg := &config.Config{Env: "dev", DefaultLimit: 20}
	cfg.Market.File = "etc/market.yaml"

	lines := ConfigSummaryLines(cfg)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Environment: dev")
	assert.Contains(t, joined, "Default limit: 20")
	assert.Contains(t, joined, "Market config: etc/market.yaml")
	assert.Contains(t, joined, "Chart config: defaults")
	assert.Contains(t, joined, "crypto=enabled")
}

func TestConfigSummaryLinesNil(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}
