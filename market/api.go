package market

import (
	"context"
	"fmt"
	"strings"
)

// Pair 交易对，例如 {BTC, USDT}。
type Pair struct {
	Base  string // currency 1
	Quote string // currency 2
}

func (p Pair) String() string { return p.Base + "_" + p.Quote }

// ParsePair 解析 "BTC_USD" 形式的交易对。
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "_")
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, want BASE_QUOTE", s)
	}
	return Pair{Base: base, Quote: quote}, nil
}

// API 交易所边界。真实网关与回测模拟器实现同一接口，Worker 只依赖它。
// CreateOrder 返回的 id 必须在短时间内可通过 GetOpenOrders 或
// GetUserTrades 解析到。
type API interface {
	GetOpenOrders(ctx context.Context, pair Pair) ([]OpenOrder, error)
	GetBalances(ctx context.Context) (map[string]float64, error)
	CreateOrder(ctx context.Context, pair Pair, quantity, price float64, side string) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	IsPartiallyFilled(ctx context.Context, orderID string) (bool, error)

	// GetTrades 公共成交流（信号与尺寸计算的输入）。
	GetTrades(ctx context.Context, pair Pair) ([]Trade, error)
	// GetUserTrades 账户自身成交，按时间升序。
	GetUserTrades(ctx context.Context, pair Pair) ([]UserTrade, error)
}

// TradeReader 是只需要公共成交流的组件（sizer、advisor）所依赖的子集。
type TradeReader interface {
	GetTrades(ctx context.Context, pair Pair) ([]Trade, error)
}
