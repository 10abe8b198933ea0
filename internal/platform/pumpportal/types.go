package pumpportal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/solwatch/pumpbot/internal/domain"
)

const (
	// methodSubscribe and methodUnsubscribe are the PumpPortal data-feed
	// commands for the token trade stream.
	methodSubscribe   = "subscribeTokenTrade"
	methodUnsubscribe = "unsubscribeTokenTrade"

	// LamportsPerSol is the fixed subunit ratio of the venue.
	LamportsPerSol = 1_000_000_000

	// tupleLamportsHeuristic disambiguates bare [mint, value] tuples, which
	// carry no unit marker: values above this are assumed to be lamports and
	// converted, values at or below are taken as SOL. The cutoff is a guess
	// inherited from observed feed traffic; values near it can be mispriced.
	tupleLamportsHeuristic = 1_000_000
)

// WSCommand is an outbound data-feed command frame.
type WSCommand struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

// tradeFrame covers the flat object payload shapes of a token trade message.
// Price is SOL per token (the documented shape); PriceLamports appears on
// some pools and is the raw subunit figure. Data carries the same payload
// nested inside a positional array on envelope-framed messages.
type tradeFrame struct {
	Mint          string            `json:"mint"`
	Price         json.RawMessage   `json:"price"`
	PriceLamports json.RawMessage   `json:"priceLamports"`
	Data          []json.RawMessage `json:"data"`
}

// ParseTick normalizes a raw inbound frame into a canonical TradeTick. The
// boolean result is false for every frame that is not a recognizable token
// trade; such frames are dropped without error, the feed is advisory.
//
// Tolerated payload shapes:
//
//	{"mint": m, "price": p}          p in SOL, number or numeric string
//	{"mint": m, "priceLamports": n}  n in lamports, converted
//	{"data": [<payload>, ...]}       payload nested in a positional array
//	[m, v]                           bare tuple, unit decided by heuristic
func ParseTick(raw []byte) (domain.TradeTick, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return domain.TradeTick{}, false
	}

	if trimmed[0] == '[' {
		return parseTuple(trimmed)
	}

	var frame tradeFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return domain.TradeTick{}, false
	}

	// Envelope shape: payload is the first element of a positional array.
	if frame.Mint == "" && len(frame.Data) > 0 {
		return ParseTick(frame.Data[0])
	}

	if frame.Mint == "" {
		return domain.TradeTick{}, false
	}

	if price, ok := rawNumber(frame.Price); ok && price > 0 {
		return tick(frame.Mint, price), true
	}
	if lamports, ok := rawNumber(frame.PriceLamports); ok && lamports > 0 {
		return tick(frame.Mint, lamports/LamportsPerSol), true
	}

	return domain.TradeTick{}, false
}

// parseTuple handles the bare two-element [mint, value] shape. The tuple
// carries no unit, so the magnitude heuristic decides lamports vs SOL.
func parseTuple(raw []byte) (domain.TradeTick, bool) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) != 2 {
		return domain.TradeTick{}, false
	}

	var mint string
	if err := json.Unmarshal(tuple[0], &mint); err != nil || mint == "" {
		return domain.TradeTick{}, false
	}

	value, ok := rawNumber(tuple[1])
	if !ok || value <= 0 {
		return domain.TradeTick{}, false
	}

	if value > tupleLamportsHeuristic {
		value /= LamportsPerSol
	}
	return tick(mint, value), true
}

// rawNumber decodes a JSON number or a numeric string. The feed emits both
// encodings for the same fields.
func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func tick(mint string, priceSol float64) domain.TradeTick {
	return domain.TradeTick{
		Mint:     mint,
		PriceSol: priceSol,
		Received: time.Now().UTC(),
	}
}
