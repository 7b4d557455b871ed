package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xmb-trader-go/market"
)

// DefaultBinanceURL 公共行情 REST 地址
const DefaultBinanceURL = "https://api.binance.com/api/v3"

// BinanceTapeClient 只读公共行情客户端，实现 market.TradeReader。
// 用于采集成交带与回测数据，不涉及账户操作。
type BinanceTapeClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter

	// RetryDelay 拉取失败后重试一次前的等待。
	RetryDelay time.Duration
}

// NewBinanceTapeClient 创建公共行情客户端。
func NewBinanceTapeClient(limiter RateLimiter) *BinanceTapeClient {
	return &BinanceTapeClient{
		BaseURL:    DefaultBinanceURL,
		HTTPClient: NewDefaultHTTPClient(),
		Limiter:    limiter,
		RetryDelay: 500 * time.Millisecond,
	}
}

type binanceTrade struct {
	ID    int64     `json:"id"`
	Price flexFloat `json:"price"`
	Qty   flexFloat `json:"qty"`
	Time  int64     `json:"time"`
}

// GetTrades 拉取最近成交（/trades，默认 500 条）。
// 只读接口，失败后做一次固定退避重试。
func (c *BinanceTapeClient) GetTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	out, err := c.fetchTrades(ctx, pair)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	if err := sleepCtx(ctx, c.RetryDelay); err != nil {
		return nil, err
	}
	return c.fetchTrades(ctx, pair)
}

func (c *BinanceTapeClient) fetchTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	params := url.Values{}
	params.Set("symbol", binanceSymbol(pair))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/trades?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build trades request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch trades: status %d", resp.StatusCode)
	}

	var rows []binanceTrade
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse trades response: %w", err)
	}
	out := make([]market.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Trade{
			ID:    r.ID,
			Price: float64(r.Price),
			Qty:   float64(r.Qty),
			Ts:    time.UnixMilli(r.Time).UTC(),
		})
	}
	return out, nil
}

// binanceSymbol BTC_USDT 风格的对转成 BTCUSDT。
func binanceSymbol(pair market.Pair) string {
	return strings.ToUpper(pair.Base + pair.Quote)
}
