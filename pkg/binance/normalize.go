package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tickflow/internal/market"
)

// ErrMalformedMessage marks feed input that failed to decode. Callers
// log and drop; it never propagates past the ingestion path.
var ErrMalformedMessage = errors.New("malformed feed message")

// NormalizeTrade converts a raw trade frame into a canonical Tick.
// Price and quantity must parse as positive finite decimals. Venue
// millisecond timestamps are widened to microsecond precision with the
// sub-millisecond component zero-filled.
func NormalizeTrade(raw []byte) (market.Tick, error) {
	var ev TradeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return market.Tick{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if ev.EventType != "trade" {
		return market.Tick{}, fmt.Errorf("%w: unexpected event type %q", ErrMalformedMessage, ev.EventType)
	}
	return tickFrom(ev.Symbol, ev.Price, ev.Quantity, ev.TradeTime, ev.TradeID)
}

// NormalizeRESTTrade converts a REST backfill row into a canonical Tick.
func NormalizeRESTTrade(symbol string, t RESTTrade) (market.Tick, error) {
	return tickFrom(symbol, t.Price, t.Qty, t.Time, t.ID)
}

func tickFrom(symbol, price, qty string, tradeTimeMs, tradeID int64) (market.Tick, error) {
	if symbol == "" {
		return market.Tick{}, fmt.Errorf("%w: empty symbol", ErrMalformedMessage)
	}

	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("%w: price %q", ErrMalformedMessage, price)
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("%w: quantity %q", ErrMalformedMessage, qty)
	}
	if p <= 0 || math.IsInf(p, 0) || math.IsNaN(p) {
		return market.Tick{}, fmt.Errorf("%w: non-positive price %q", ErrMalformedMessage, price)
	}
	if q < 0 || math.IsInf(q, 0) || math.IsNaN(q) {
		return market.Tick{}, fmt.Errorf("%w: negative quantity %q", ErrMalformedMessage, qty)
	}
	if tradeTimeMs <= 0 {
		return market.Tick{}, fmt.Errorf("%w: trade time %d", ErrMalformedMessage, tradeTimeMs)
	}

	return market.Tick{
		Symbol: strings.ToUpper(symbol),
		Price:  p,
		Size:   q,
		// UnixMilli widens to microseconds with zeros, never jitter.
		Timestamp: time.UnixMilli(tradeTimeMs).UTC(),
		TradeID:   strconv.FormatInt(tradeID, 10),
	}, nil
}
