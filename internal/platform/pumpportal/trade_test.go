package pumpportal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/pumpbot/internal/domain"
)

func newTradeTestServer(t *testing.T, status int, respBody string, got *map[string]any, gotKey *string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if gotKey != nil {
			*gotKey = r.URL.Query().Get("api-key")
		}
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTradeClient(url string) *TradeClient {
	return NewTradeClient(TradeClientConfig{
		TradeURL:    url,
		ApiKey:      "test-key",
		SlippagePct: 5,
		PriorityFee: 0.00001,
	})
}

func TestExecuteTradeBuyDenominatedInSol(t *testing.T) {
	var got map[string]any
	var gotKey string
	srv := newTradeTestServer(t, http.StatusOK, `{"signature":"sig123"}`, &got, &gotKey)

	client := newTestTradeClient(srv.URL)
	result, err := client.ExecuteTrade(context.Background(), domain.TradeIntent{
		ID:     "intent-1",
		Mint:   testMint,
		Side:   domain.TradeSideBuy,
		Amount: "0.05",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sig123", result.Signature)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "buy", got["action"])
	assert.Equal(t, testMint, got["mint"])
	assert.Equal(t, "true", got["denominatedInSol"])
	assert.Equal(t, 0.05, got["amount"]) // plain quantity sent as a JSON number
	assert.Equal(t, 5.0, got["slippage"])
	assert.Equal(t, "auto", got["pool"])
}

func TestExecuteTradePercentSellKeepsString(t *testing.T) {
	var got map[string]any
	srv := newTradeTestServer(t, http.StatusOK, `{"signature":"sig456"}`, &got, nil)

	client := newTestTradeClient(srv.URL)
	_, err := client.ExecuteTrade(context.Background(), domain.TradeIntent{
		ID:              "intent-2",
		Mint:            testMint,
		Side:            domain.TradeSideSell,
		Amount:          "40%",
		AmountIsPercent: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "sell", got["action"])
	assert.Equal(t, "false", got["denominatedInSol"])
	assert.Equal(t, "40%", got["amount"])
}

func TestExecuteTradeRejections(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error status", http.StatusBadRequest, `{"errors":["invalid mint"]}`},
		{"missing signature", http.StatusOK, `{"errors":["insufficient balance"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTradeTestServer(t, tt.status, tt.body, nil, nil)
			client := newTestTradeClient(srv.URL)

			result, err := client.ExecuteTrade(context.Background(), domain.TradeIntent{
				ID:     "intent-3",
				Mint:   testMint,
				Side:   domain.TradeSideBuy,
				Amount: "0.05",
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTradeRejected)
			assert.False(t, result.Success)
		})
	}
}
