// Package attest produces zkTLS attestations of executed buys through a
// Primus-style attestor gateway. Attestation is evidence generation only; it
// never gates or delays trading.
package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solwatch/pumpbot/internal/domain"
)

// Client submits attestation requests over HTTP.
type Client struct {
	endpoint   string
	appID      string
	appSecret  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an attestor client for the given gateway endpoint.
func NewClient(endpoint, appID, appSecret string, logger *slog.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		appID:     appID,
		appSecret: appSecret,
		httpClient: &http.Client{
			// Proof generation is slow; allow well over the usual API timeout.
			Timeout: 2 * time.Minute,
		},
		logger: logger.With(slog.String("component", "attestor")),
	}
}

// attestRequest describes the TLS exchange the gateway should prove: the
// trade-local call that produced the buy transaction.
type attestRequest struct {
	AppID     string        `json:"app_id"`
	AppSecret string        `json:"app_secret"`
	Mode      string        `json:"mode"`
	Request   targetRequest `json:"request"`
	Resolves  []resolve     `json:"response_resolves"`
}

type targetRequest struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Header map[string]string `json:"header"`
	Body   tradeLocalBody    `json:"body"`
}

type tradeLocalBody struct {
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	DenominatedInSol string  `json:"denominatedInSol"`
	Amount           float64 `json:"amount"`
	Slippage         int     `json:"slippage"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool"`
}

type resolve struct {
	KeyName   string `json:"keyName"`
	ParseType string `json:"parseType"`
	ParsePath string `json:"parsePath"`
}

type attestResponse struct {
	Attestation json.RawMessage `json:"attestation"`
	Verified    bool            `json:"verified"`
	Error       string          `json:"error"`
}

// AttestTrade proves that a buy of amountSol in mint was submitted to the
// venue. The returned proof is the gateway's attestation object, serialized.
func (c *Client) AttestTrade(ctx context.Context, mint string, amountSol float64) (domain.Attestation, error) {
	reqBody := attestRequest{
		AppID:     c.appID,
		AppSecret: c.appSecret,
		Mode:      "proxytls",
		Request: targetRequest{
			URL:    "https://pumpportal.fun/api/trade-local",
			Method: http.MethodPost,
			Header: map[string]string{"Content-Type": "application/json"},
			Body: tradeLocalBody{
				Action:           "buy",
				Mint:             mint,
				DenominatedInSol: "true",
				Amount:           amountSol,
				Slippage:         5,
				PriorityFee:      0.00001,
				Pool:             "auto",
			},
		},
		Resolves: []resolve{
			{KeyName: "rawTx", ParseType: "json", ParsePath: "$.rawTx"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("attest: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("attest: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("attest: %s: %w", mint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("attest: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Attestation{}, fmt.Errorf("attest: %s: status %d", mint, resp.StatusCode)
	}

	var out attestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Attestation{}, fmt.Errorf("attest: decode response: %w", err)
	}
	if out.Error != "" {
		return domain.Attestation{}, fmt.Errorf("attest: %s: gateway error: %s", mint, out.Error)
	}
	if len(out.Attestation) == 0 {
		return domain.Attestation{}, fmt.Errorf("attest: %s: empty attestation", mint)
	}

	c.logger.Info("trade attested",
		slog.String("mint", mint),
		slog.Bool("verified", out.Verified),
		slog.Duration("took", time.Since(start)),
	)

	return domain.Attestation{
		ID:        uuid.New().String(),
		Mint:      mint,
		Proof:     string(out.Attestation),
		CreatedAt: time.Now().UTC(),
	}, nil
}

var _ domain.TradeAttester = (*Client)(nil)
