package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xmb-trader-go/market"
)

func TestBinanceTapeClientGetTrades(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Fatalf("symbol = %s", got)
		}
		io.WriteString(w, `[
			{"id":28457,"price":"4.00000100","qty":"12.00000000","time":1499865549590},
			{"id":28458,"price":"4.00000200","qty":"1.00000000","time":1499865550000}
		]`)
	}))
	defer ts.Close()

	cli := NewBinanceTapeClient(nil)
	cli.BaseURL = ts.URL
	cli.HTTPClient = ts.Client()

	trades, err := cli.GetTrades(context.Background(), market.Pair{Base: "BTC", Quote: "USDT"})
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if trades[0].ID != 28457 || trades[0].Price != 4.000001 || trades[0].Qty != 12 {
		t.Fatalf("trade = %+v", trades[0])
	}
	if !trades[0].Ts.Equal(time.UnixMilli(1499865549590).UTC()) {
		t.Fatalf("ts = %v", trades[0].Ts)
	}
}

func TestBinanceTapeClientRetriesOnce(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[{"id":1,"price":"4.0","qty":"1.0","time":1499865549590}]`)
	}))
	defer ts.Close()

	cli := NewBinanceTapeClient(nil)
	cli.BaseURL = ts.URL
	cli.HTTPClient = ts.Client()
	cli.RetryDelay = 0

	trades, err := cli.GetTrades(context.Background(), market.Pair{Base: "BTC", Quote: "USDT"})
	if err != nil {
		t.Fatalf("GetTrades after retry: %v", err)
	}
	if calls != 2 || len(trades) != 1 {
		t.Fatalf("calls = %d, trades = %d, want 2 and 1", calls, len(trades))
	}
}

func TestParseTradeEvent(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1672515782000,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","T":1672515782136}`)
	trade, ok, err := parseTradeEvent(raw)
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if trade.ID != 12345 || trade.Price != 0.001 || trade.Qty != 100 {
		t.Fatalf("trade = %+v", trade)
	}
	if trade.Ts != time.UnixMilli(1672515782136).UTC() {
		t.Fatalf("trade ts = %v, want trade time, not event time", trade.Ts)
	}

	// 非成交事件忽略
	_, ok, err = parseTradeEvent([]byte(`{"e":"aggTrade","t":1}`))
	if err != nil || ok {
		t.Fatalf("non-trade event: ok=%v err=%v", ok, err)
	}
}

func TestTokenBucketLimiterAllowsBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 5)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("burst should not block, took %v", elapsed)
	}
}

func TestTokenBucketLimiterStopsOnCanceledContext(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait must fail once ctx is canceled")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Wait blocked %v after cancel", elapsed)
	}
}
