package futures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// doPublic performs an unsigned GET against a public futures endpoint.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))
	}
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("binance usdt futures GET %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

// GetExchangeInfo fetches trading rules and symbol filters.
func (c *Client) GetExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	var resp exchangeInfoResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	return resp.Symbols, nil
}

// GetTickers24h fetches the 24h rolling ticker for all symbols.
func (c *Client) GetTickers24h(ctx context.Context) ([]Ticker24h, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	var tickers []Ticker24h
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	return tickers, nil
}

// GetTicker24h fetches the 24h rolling ticker for one symbol.
func (c *Client) GetTicker24h(ctx context.Context, symbol string) (Ticker24h, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doPublic(ctx, "/fapi/v1/ticker/24hr", params)
	if err != nil {
		return Ticker24h{}, err
	}
	var t Ticker24h
	if err := json.Unmarshal(body, &t); err != nil {
		return Ticker24h{}, fmt.Errorf("decode ticker: %w", err)
	}
	return t, nil
}

// GetKlines fetches candlesticks. Binance returns them oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	body, err := c.doPublic(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		k := Kline{
			OpenTime:  int64(asFloat(row[0])),
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
			CloseTime: int64(asFloat(row[6])),
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetDepth fetches the order book to the requested limit.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (DepthSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	body, err := c.doPublic(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return DepthSnapshot{}, err
	}
	var d DepthSnapshot
	if err := json.Unmarshal(body, &d); err != nil {
		return DepthSnapshot{}, fmt.Errorf("decode depth: %w", err)
	}
	return d, nil
}

// asFloat converts a kline column that may arrive as number or string.
func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
