package sina

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSDailyParsesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, dailyKPath, r.URL.Path)
		// Tickers are passed lowercase.
		assert.Equal(t, "aapl", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `[
			{"d":"2024-05-30","o":"188.0","h":"191.0","l":"187.0","c":"190.5","v":"500000"},
			{"d":"2024-05-31","o":"190.5","h":"193.0","l":"189.5","c":"192.2","v":"480000"}
		]`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithMaxRetries(0))
	table, err := client.USDaily(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "open", "high", "low", "close", "volume"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2024-05-30", table.Cell(table.Rows[0], "date"))
	assert.Equal(t, "190.5", table.Cell(table.Rows[0], "close"))
	assert.Equal(t, "480000", table.Cell(table.Rows[1], "volume"))
}

func TestUSDailyEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithMaxRetries(0))
	table, err := client.USDaily(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestUSDailyRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithMaxRetries(2))
	_, err := client.USDaily(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUSDailyDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithMaxRetries(2))
	_, err := client.USDaily(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "http status 403")
}
