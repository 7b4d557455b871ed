package gateway

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

	"xmb-trader-go/market"
)

// DefaultExmoURL 生产环境 API 地址
const DefaultExmoURL = "https://api.exmo.me/v1"

// errNoTrades Exmo 对没有任何成交的订单查询 order_trades 返回该业务错误码
const errNoTrades = "50304"

// ExmoClient 签名 REST 客户端，实现 market.API。
// 每个私有请求携带毫秒 nonce，请求体为 urlencoded 并以 HMAC-SHA512 签名。
type ExmoClient struct {
	BaseURL    string
	Key        string
	Secret     string
	HTTPClient *http.Client
	Limiter    RateLimiter

	// RetryDelay 幂等调用瞬时失败后重试一次前的等待。
	RetryDelay time.Duration

	nonce func() int64
}

// NewExmoClient 创建客户端。limiter 可为 nil（不限流）。
func NewExmoClient(key, secret string, limiter RateLimiter) *ExmoClient {
	return &ExmoClient{
		BaseURL:    DefaultExmoURL,
		Key:        key,
		Secret:     secret,
		HTTPClient: NewDefaultHTTPClient(),
		Limiter:    limiter,
		RetryDelay: 500 * time.Millisecond,
		nonce:      func() int64 { return time.Now().UnixMilli() },
	}
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// callIdempotent 只用于可安全重放的方法（查询与撤单）：
// 传输层失败后做一次固定退避重试，业务错误原样上抛。
func (c *ExmoClient) callIdempotent(ctx context.Context, method string, params url.Values, out interface{}) error {
	err := c.callAPI(ctx, method, params, out)
	if err == nil || ctx.Err() != nil {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if err := sleepCtx(ctx, c.RetryDelay); err != nil {
		return err
	}
	return c.callAPI(ctx, method, params, out)
}

func (c *ExmoClient) callAPI(ctx context.Context, method string, params url.Values, out interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if params == nil {
		params = url.Values{}
	}
	nonce := c.nonce
	if nonce == nil {
		nonce = func() int64 { return time.Now().UnixMilli() }
	}
	params.Set("nonce", strconv.FormatInt(nonce(), 10))
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+method, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Key", c.Key)
	req.Header.Set("Sign", SignForm(body, c.Secret))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("call %s: status %d", method, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	// 业务错误藏在 HTTP 200 里
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Error != "" {
		return &APIError{Method: method, Message: probe.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	return nil
}

type exmoOrder struct {
	OrderID  flexInt   `json:"order_id"`
	Created  flexInt   `json:"created"`
	Type     string    `json:"type"`
	Price    flexFloat `json:"price"`
	Quantity flexFloat `json:"quantity"`
}

func (c *ExmoClient) GetOpenOrders(ctx context.Context, pair market.Pair) ([]market.OpenOrder, error) {
	var resp map[string][]exmoOrder
	if err := c.callIdempotent(ctx, "user_open_orders", nil, &resp); err != nil {
		return nil, err
	}
	rows := resp[pair.String()]
	out := make([]market.OpenOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.OpenOrder{
			ID:       strconv.FormatInt(int64(r.OrderID), 10),
			Side:     r.Type,
			Price:    float64(r.Price),
			Quantity: float64(r.Quantity),
			Created:  time.Unix(int64(r.Created), 0).UTC(),
		})
	}
	return out, nil
}

func (c *ExmoClient) GetBalances(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Balances map[string]flexFloat `json:"balances"`
	}
	if err := c.callIdempotent(ctx, "user_info", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.Balances))
	for cur, amount := range resp.Balances {
		out[cur] = float64(amount)
	}
	return out, nil
}

func (c *ExmoClient) CreateOrder(ctx context.Context, pair market.Pair, quantity, price float64, side string) (string, error) {
	params := url.Values{}
	params.Set("pair", pair.String())
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("type", side)
	var resp struct {
		OrderID flexInt `json:"order_id"`
	}
	if err := c.callAPI(ctx, "order_create", params, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == 0 {
		return "", fmt.Errorf("order_create returned no order id")
	}
	return strconv.FormatInt(int64(resp.OrderID), 10), nil
}

func (c *ExmoClient) CancelOrder(ctx context.Context, orderID string) error {
	params := url.Values{}
	params.Set("order_id", orderID)
	return c.callIdempotent(ctx, "order_cancel", params, nil)
}

// IsPartiallyFilled 通过 order_trades 判断：无任何成交时交易所返回
// 业务错误 50304，其余错误原样上抛。
func (c *ExmoClient) IsPartiallyFilled(ctx context.Context, orderID string) (bool, error) {
	params := url.Values{}
	params.Set("order_id", orderID)
	err := c.callIdempotent(ctx, "order_trades", params, nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, errNoTrades) {
		return false, nil
	}
	return false, err
}

type exmoTrade struct {
	TradeID  flexInt   `json:"trade_id"`
	Date     flexInt   `json:"date"`
	Type     string    `json:"type"`
	Price    flexFloat `json:"price"`
	Quantity flexFloat `json:"quantity"`
	OrderID  flexInt   `json:"order_id"`
}

func (c *ExmoClient) GetTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	params := url.Values{}
	params.Set("pair", pair.String())
	var resp map[string][]exmoTrade
	if err := c.callIdempotent(ctx, "trades", params, &resp); err != nil {
		return nil, err
	}
	rows := resp[pair.String()]
	out := make([]market.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Trade{
			ID:    int64(r.TradeID),
			Price: float64(r.Price),
			Qty:   float64(r.Quantity),
			Ts:    time.Unix(int64(r.Date), 0).UTC(),
		})
	}
	return out, nil
}

func (c *ExmoClient) GetUserTrades(ctx context.Context, pair market.Pair) ([]market.UserTrade, error) {
	params := url.Values{}
	params.Set("pair", pair.String())
	var resp map[string][]exmoTrade
	if err := c.callIdempotent(ctx, "user_trades", params, &resp); err != nil {
		return nil, err
	}
	rows := resp[pair.String()]
	out := make([]market.UserTrade, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.UserTrade{
			OrderID: strconv.FormatInt(int64(r.OrderID), 10),
			TradeID: int64(r.TradeID),
			Side:    r.Type,
			Price:   float64(r.Price),
			Qty:     float64(r.Quantity),
			Ts:      time.Unix(int64(r.Date), 0).UTC(),
		})
	}
	return out, nil
}
