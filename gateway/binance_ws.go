package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"xmb-trader-go/market"
)

// BinanceWSEndpoint 公共行情 websocket 地址
const BinanceWSEndpoint = "wss://stream.binance.com:9443"

// TradeHandler 每收到一笔成交回调一次。
type TradeHandler func(market.Trade)

// BinanceTradeStream 订阅 <symbol>@trade 流并把成交推给 handler。
// 连接断开后由调用方决定是否重连（cmd/collector 里带退避重试）。
type BinanceTradeStream struct {
	Endpoint string
	Dialer   *websocket.Dialer

	ReadTimeout time.Duration
}

// NewBinanceTradeStream 创建成交流客户端。
func NewBinanceTradeStream() *BinanceTradeStream {
	return &BinanceTradeStream{
		Endpoint:    BinanceWSEndpoint,
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: time.Minute,
	}
}

// tradeEvent 对应 @trade 推送。EventTime 必须显式声明：json 匹配对
// 不精确的 tag 忽略大小写，缺了它 "E"（数值）会落到 "e"（字符串）上。
type tradeEvent struct {
	EventType string    `json:"e"`
	EventTime int64     `json:"E"`
	TradeID   int64     `json:"t"`
	Price     flexFloat `json:"p"`
	Quantity  flexFloat `json:"q"`
	TradeTime int64     `json:"T"`
}

// Run 连接并持续读取，直到 ctx 取消或连接出错。
func (s *BinanceTradeStream) Run(ctx context.Context, pair market.Pair, handler TradeHandler) error {
	if handler == nil {
		return fmt.Errorf("trade handler required")
	}
	streamURL := s.Endpoint + "/ws/" + strings.ToLower(binanceSymbol(pair)) + "@trade"
	conn, _, err := s.Dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", streamURL, err)
	}
	defer conn.Close()

	// ctx 取消时强制断开阻塞中的 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if s.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read trade stream: %w", err)
		}
		trade, ok, err := parseTradeEvent(message)
		if err != nil || !ok {
			continue
		}
		handler(trade)
	}
}

// parseTradeEvent 解析 @trade 消息；非成交事件返回 ok=false。
func parseTradeEvent(raw []byte) (market.Trade, bool, error) {
	var ev tradeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return market.Trade{}, false, err
	}
	if ev.EventType != "trade" {
		return market.Trade{}, false, nil
	}
	return market.Trade{
		ID:    ev.TradeID,
		Price: float64(ev.Price),
		Qty:   float64(ev.Quantity),
		Ts:    time.UnixMilli(ev.TradeTime).UTC(),
	}, true, nil
}
