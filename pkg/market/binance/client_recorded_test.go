package binance

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
)

// This test uses go-vcr to record/replay a real Ticker24h call.
// It skips by default if cassette is absent and RECORD_CASSETTES != 1.
func TestClient_Ticker24h_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "binance_ticker.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		// Ensure parent directory exists for recording
		err := os.MkdirAll(filepath.Dir(cassette), 0o755)
		assert.NoError(t, err, "mkdir cassettes dir should succeed")
	}

	r, err := recorder.New(cassette)
	assert.NoError(t, err, "recorder.New should not error")
	assert.NotNil(t, r, "recorder should not be nil")
	defer func() { _ = r.Stop() }()

	httpClient := &http.Client{Transport: r}
	client := NewClient(WithHTTPClient(httpClient))
	ticker, err := client.Ticker24h(context.Background(), "BTCUSDT")
	assert.NoError(t, err, "Ticker24h should not error")
	assert.NotNil(t, ticker, "ticker should not be nil")
	assert.Equal(t, "BTCUSDT", ticker.Symbol)
	assert.Greater(t, ticker.Last(), 0.0, "last price should be positive")
}
