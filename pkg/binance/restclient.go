package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tickflow/internal/market"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ActiveSymbols fetches the exchange's instrument list and returns the
// uppercase symbols currently in TRADING status.
func (c *RESTClient) ActiveSymbols(ctx context.Context) (map[string]bool, error) {
	endpoint := c.baseURL + "/fapi/v1/exchangeInfo"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance error: %s", body)
	}

	var info ExchangeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	active := make(map[string]bool, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			active[strings.ToUpper(s.Symbol)] = true
		}
	}
	return active, nil
}

// RecentTrades fetches up to limit recent executions for a symbol and
// normalizes them. Rows that fail to normalize are skipped.
func (c *RESTClient) RecentTrades(ctx context.Context, symbol string, limit int) ([]market.Tick, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	endpoint := fmt.Sprintf("%s/fapi/v1/trades?symbol=%s&limit=%d",
		c.baseURL, strings.ToUpper(symbol), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance error: %s", body)
	}

	var rows []RESTTrade
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	ticks := make([]market.Tick, 0, len(rows))
	for _, row := range rows {
		tick, err := NormalizeRESTTrade(symbol, row)
		if err != nil {
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}
