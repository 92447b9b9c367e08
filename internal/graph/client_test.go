package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

// ========== Test Helpers ==========

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c, err := NewClient(newTestLogger(), &config.GraphConfig{Endpoint: url, PageSize: 1000})
	require.NoError(t, err)
	return c
}

const okBody = `{"data":{"swaps":[
 {"amountUSD":"100","amount0In":"10","amount1In":"0","amount0Out":"8","amount1Out":"0","timestamp":"1710633600",
  "pair":{"token0":{"id":"0xa","symbol":"AAA"},"token1":{"id":"0xb","symbol":"BBB"}}},
 {"amountUSD":"1234.5","amount0In":"0","amount1In":"3","amount0Out":"1","amount1Out":"0","timestamp":1710720000,
  "pair":{"token0":{"id":"0xa","symbol":"AAA"},"token1":{"id":"0xb","symbol":"BBB"}}}
]}}`

// ========== Request shape ==========

func TestFetch_RequestShape(t *testing.T) {
	var got gqlRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(b, &got))

		_, _ = w.Write([]byte(`{"data":{"swaps":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	swaps, err := c.Fetch(context.Background(), "0xABCdef", 1700000000)
	require.NoError(t, err)
	assert.Empty(t, swaps)

	assert.Equal(t, "0xabcdef", got.Variables["sender"])
	assert.Equal(t, "1700000000", got.Variables["since"])
	assert.Contains(t, got.Query, "first: 1000")
	assert.Contains(t, got.Query, "orderBy: timestamp, orderDirection: desc")
	assert.Contains(t, got.Query, "timestamp_gte: $since")
	for _, field := range []string{"amountUSD", "amount0In", "amount1In", "amount0Out", "amount1Out", "token0 { id symbol }", "token1 { id symbol }"} {
		assert.Contains(t, got.Query, field)
	}
}

// ========== Success ==========

func TestFetch_ParsesSwaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	swaps, err := newTestClient(t, srv.URL).Fetch(context.Background(), "0xabc", 0)
	require.NoError(t, err)
	require.Len(t, swaps, 2)

	assert.True(t, swaps[0].AmountUSD.Equal(decimal.NewFromInt(100)))
	assert.True(t, swaps[0].AmountIn0.Equal(decimal.NewFromInt(10)))
	assert.True(t, swaps[0].AmountOut0.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, int64(1710633600), swaps[0].Timestamp)
	assert.Equal(t, "AAA", swaps[0].Pair.Token0.Symbol)
	assert.Equal(t, "0xb", swaps[0].Pair.Token1.ID)

	// numeric timestamp is accepted as well
	assert.Equal(t, int64(1710720000), swaps[1].Timestamp)
	assert.True(t, swaps[1].AmountUSD.Equal(decimal.RequireFromString("1234.5")))
}

// ========== Fetch errors ==========

func TestFetch_FetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "status_500", status: http.StatusInternalServerError, body: `internal`},
		{name: "status_429", status: http.StatusTooManyRequests, body: `{"data":{"swaps":[]}}`},
		{name: "missing_data", status: http.StatusOK, body: `{"errors":[{"message":"indexing error"}]}`},
		{name: "missing_swaps", status: http.StatusOK, body: `{"data":{}}`},
		{name: "null_swaps", status: http.StatusOK, body: `{"data":{"swaps":null}}`},
		{name: "not_json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			swaps, err := newTestClient(t, srv.URL).Fetch(context.Background(), "0xabc", 0)
			require.Error(t, err)
			assert.Nil(t, swaps)
			assert.True(t, errors.Is(err, domain.ErrFetch), "got %v", err)
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Fetch(context.Background(), "0xabc", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetch))
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL).Fetch(ctx, "0xabc", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetch))
}

// ========== Parse errors ==========

func TestFetch_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		swap  string
		field string
	}{
		{name: "missing_amount_usd", field: "amountUSD",
			swap: `{"amount0In":"1","amount1In":"0","amount0Out":"1","amount1Out":"0","timestamp":"1"}`},
		{name: "null_amount_in", field: "amount1In",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":null,"amount0Out":"1","amount1Out":"0","timestamp":"1"}`},
		{name: "non_numeric_out", field: "amount0Out",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":"0","amount0Out":"abc","amount1Out":"0","timestamp":"1"}`},
		{name: "bad_timestamp", field: "timestamp",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":"0","amount0Out":"1","amount1Out":"0","timestamp":"yesterday"}`},
		{name: "missing_timestamp", field: "timestamp",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":"0","amount0Out":"1","amount1Out":"0"}`},
		{name: "missing_pair", field: "pair.token0.id",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":"0","amount0Out":"1","amount1Out":"0","timestamp":"1"}`},
		{name: "empty_token1_id", field: "pair.token1.id",
			swap: `{"amountUSD":"1","amount0In":"1","amount1In":"0","amount0Out":"1","amount1Out":"0","timestamp":"1",
			 "pair":{"token0":{"id":"0xa","symbol":"AAA"},"token1":{"id":"","symbol":"BBB"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"swaps":[` + tt.swap + `]}}`))
			}))
			defer srv.Close()

			swaps, err := newTestClient(t, srv.URL).Fetch(context.Background(), "0xabc", 0)
			require.Error(t, err)
			assert.Nil(t, swaps)

			var pe *domain.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, 0, pe.Index)
			assert.False(t, errors.Is(err, domain.ErrFetch))
		})
	}
}

// ========== Constructor ==========

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(newTestLogger(), nil)
	assert.Error(t, err)

	_, err = NewClient(newTestLogger(), &config.GraphConfig{})
	assert.Error(t, err)

	c, err := NewClient(newTestLogger(), &config.GraphConfig{Endpoint: "http://x", PageSize: 250})
	require.NoError(t, err)
	assert.Contains(t, c.query, "first: 250")
	assert.Equal(t, time.Duration(0), c.httpClient.Timeout)
}
