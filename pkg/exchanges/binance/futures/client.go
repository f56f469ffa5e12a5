package futures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"futures-core/pkg/exchanges/common"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client handles Binance USDT-M futures.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// NewClient creates a new USDT-M futures client.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(func() (int64, error) {
		return c.GetServerTime()
	})
	c.rateLimiter = common.NewRateLimiter(2400, time.Minute) // 2400 weight/min for futures
	return c
}

// StartTimeSync begins background clock synchronization with the exchange.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// now returns a signed-request timestamp, using the synced clock when available.
func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// SubmitOrder places an order.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderResult{}, errors.New("binance usdt futures: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", strings.ToUpper(string(req.Type)))
	params.Set("quantity", formatFloat(req.Qty))

	if req.Type == common.OrderTypeStopMarket || req.Type == common.OrderTypeTakeProfitMarket {
		params.Set("stopPrice", formatFloat(req.StopPrice))
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	// Have the ack include avgPrice for market fills.
	params.Set("newOrderRespType", "RESULT")

	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	endpoint := c.baseURL + "/fapi/v1/order"
	body, err := c.doSigned(ctx, http.MethodPost, endpoint, params)
	if err != nil {
		return common.OrderResult{}, err
	}
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order: %w", err)
	}
	avgPrice, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return common.OrderResult{
		ExchangeOrderID: fmt.Sprintf("%d", resp.OrderID),
		Status:          mapStatus(resp.Status),
		ClientID:        resp.ClientOrderID,
		AvgPrice:        avgPrice,
	}, nil
}

// CancelAllOpenOrders cancels all open orders for a symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("binance usdt futures: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	endpoint := c.baseURL + "/fapi/v1/allOpenOrders"
	_, err := c.doSigned(ctx, http.MethodDelete, endpoint, params)
	return err
}

// GetPositions returns the position risk view; symbol optional.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]PositionRisk, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("binance usdt futures: API key/secret required")
	}
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	endpoint := c.baseURL + "/fapi/v2/positionRisk"
	body, err := c.doSigned(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	var pos []PositionRisk
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return pos, nil
}

// GetOpenOrders returns open orders; symbol optional.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("binance usdt futures: API key/secret required")
	}
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	endpoint := c.baseURL + "/fapi/v1/openOrders"
	body, err := c.doSigned(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	var orders []OpenOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	return orders, nil
}

// GetBalance returns futures balances.
func (c *Client) GetBalance(ctx context.Context) ([]FuturesBalance, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	endpoint := c.baseURL + "/fapi/v2/balance"
	body, err := c.doSigned(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	var bal []FuturesBalance
	if err := json.Unmarshal(body, &bal); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return bal, nil
}

// SetLeverage sets leverage for a symbol. Idempotent on the exchange side.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	endpoint := c.baseURL + "/fapi/v1/leverage"
	_, err := c.doSigned(ctx, http.MethodPost, endpoint, params)
	return err
}

// GetServerTime fetches futures server time.
func (c *Client) GetServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

// doSigned handles signing and sending requests.
func (c *Client) doSigned(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	sig := sign(params.Encode(), c.cfg.APISecret)
	params.Set("signature", sig)

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

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
		err := fmt.Errorf("binance usdt futures %s %s status %d: %s", method, endpoint, res.StatusCode, string(body))
		// 4xx responses other than 429/418 are parameter or permission
		// rejections; retrying them only burns weight.
		if res.StatusCode >= 400 && res.StatusCode < 500 &&
			res.StatusCode != http.StatusTooManyRequests && res.StatusCode != 418 {
			return nil, common.Permanent(err)
		}
		return nil, err
	}
	return body, nil
}

type orderResp struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	AvgPrice      string `json:"avgPrice"`
}
