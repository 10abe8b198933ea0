package pumpportal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/solwatch/pumpbot/internal/domain"
)

// TradeClient executes trades through the PumpPortal Lightning trade API. The
// venue holds the wallet and signs server-side; the client only submits the
// intent and reads back the transaction signature.
type TradeClient struct {
	tradeURL    string
	apiKey      string
	slippage    float64
	priorityFee float64
	pool        string
	httpClient  *http.Client
}

// TradeClientConfig holds the Lightning API parameters.
type TradeClientConfig struct {
	TradeURL    string
	ApiKey      string
	SlippagePct float64
	PriorityFee float64
	Pool        string
}

// NewTradeClient creates a TradeClient. Pool defaults to "auto" when empty.
func NewTradeClient(cfg TradeClientConfig) *TradeClient {
	pool := cfg.Pool
	if pool == "" {
		pool = "auto"
	}
	return &TradeClient{
		tradeURL:    cfg.TradeURL,
		apiKey:      cfg.ApiKey,
		slippage:    cfg.SlippagePct,
		priorityFee: cfg.PriorityFee,
		pool:        pool,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// tradeRequest is the Lightning API request body. Amount is a SOL quantity
// for buys and either a token quantity or a percent string ("100%") for
// sells; DenominatedInSol is the string "true"/"false" the API expects.
type tradeRequest struct {
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	Amount           any     `json:"amount"`
	DenominatedInSol string  `json:"denominatedInSol"`
	Slippage         float64 `json:"slippage"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool"`
}

// tradeResponse is the Lightning API response body.
type tradeResponse struct {
	Signature string   `json:"signature"`
	Errors    []string `json:"errors"`
}

// ExecuteTrade submits a trade intent to the venue. A venue-side rejection is
// reported as an unsuccessful result wrapping domain.ErrTradeRejected so
// callers can distinguish it from transport failures.
func (c *TradeClient) ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (domain.TradeResult, error) {
	req := tradeRequest{
		Action:      string(intent.Side),
		Mint:        intent.Mint,
		Amount:      intent.Amount,
		Slippage:    c.slippage,
		PriorityFee: c.priorityFee,
		Pool:        c.pool,
	}

	// Buys are denominated in SOL; sells in tokens (or a percent of them).
	if intent.Side == domain.TradeSideBuy {
		req.DenominatedInSol = "true"
	} else {
		req.DenominatedInSol = "false"
	}
	if !intent.AmountIsPercent {
		// Plain quantities go over the wire as numbers, not strings.
		var amount float64
		if _, err := fmt.Sscanf(intent.Amount, "%g", &amount); err == nil {
			req.Amount = amount
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: marshal request: %w", err)
	}

	endpoint := c.tradeURL + "?" + url.Values{"api-key": {c.apiKey}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: %s %s: %w", intent.Side, intent.Mint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: status %d: %s: %w",
			resp.StatusCode, string(respBody), domain.ErrTradeRejected)
	}

	var parsed tradeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.TradeResult{}, fmt.Errorf("pumpportal/trade: decode response: %w", err)
	}
	if parsed.Signature == "" {
		return domain.TradeResult{Success: false}, fmt.Errorf("pumpportal/trade: no signature (errors: %v): %w",
			parsed.Errors, domain.ErrTradeRejected)
	}

	return domain.TradeResult{Success: true, Signature: parsed.Signature}, nil
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*TradeClient)(nil)
