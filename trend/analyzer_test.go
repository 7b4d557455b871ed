package trend

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"xmb-trader-go/market"
	"xmb-trader-go/order"
)

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func risingTape(n int) []market.Trade {
	trades := make([]market.Trade, n)
	for i := 0; i < n; i++ {
		trades[i] = market.Trade{
			ID:    int64(i),
			Price: 1200 + 10*float64(i),
			Qty:   0.1,
			Ts:    testBase.Add(time.Duration(i) * time.Second),
		}
	}
	return trades
}

func fallingTape(n int) []market.Trade {
	trades := make([]market.Trade, n)
	for i := 0; i < n; i++ {
		trades[i] = market.Trade{
			ID:    int64(i),
			Price: 1400 - 10*float64(i),
			Qty:   0.1,
			Ts:    testBase.Add(time.Duration(i) * time.Second),
		}
	}
	return trades
}

func testAnalyzer(n int) *Analyzer {
	a := NewAnalyzer(DefaultConfig())
	a.SetClock(func() time.Time { return testBase.Add(time.Duration(n-1) * time.Second) })
	return a
}

func TestAnalyzeRisingSeries(t *testing.T) {
	a := testAnalyzer(20)
	snap, err := a.Analyze(risingTape(20))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if snap.Profile != order.ProfileUp {
		t.Fatalf("profile = %s, want UP", snap.Profile)
	}
	if snap.ProfitMarkup <= 0 {
		t.Fatalf("profit markup = %v, want > 0", snap.ProfitMarkup)
	}
	if snap.ReferencePrice <= 0 {
		t.Fatalf("reference price = %v, want > 0", snap.ReferencePrice)
	}
}

func TestAnalyzeFallingSeries(t *testing.T) {
	a := testAnalyzer(20)
	snap, err := a.Analyze(fallingTape(20))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if snap.Profile != order.ProfileDown {
		t.Fatalf("profile = %s, want DOWN", snap.Profile)
	}
	if snap.ProfitMarkup <= 0 {
		t.Fatalf("profit markup = %v, want > 0", snap.ProfitMarkup)
	}
}

func TestAnalyzeTooFewTimestamps(t *testing.T) {
	a := testAnalyzer(1)
	// 同一秒内的两笔成交只构成一个桶
	trades := []market.Trade{
		{ID: 1, Price: 1000, Ts: testBase},
		{ID: 2, Price: 1001, Ts: testBase.Add(200 * time.Millisecond)},
	}
	_, err := a.Analyze(trades)
	if !errors.Is(err, ErrNoSignal) {
		t.Fatalf("err = %v, want ErrNoSignal", err)
	}

	_, err = a.Analyze(nil)
	if !errors.Is(err, ErrNoSignal) {
		t.Fatalf("empty tape err = %v, want ErrNoSignal", err)
	}
}

func TestReferencePriceDoublesWindow(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	now := testBase
	a.SetClock(func() time.Time { return now })

	// 最近 4s 内无成交，窗口翻倍到 32s 后命中
	trades := []market.Trade{
		{ID: 1, Price: 500, Ts: now.Add(-30 * time.Second)},
		{ID: 2, Price: 700, Ts: now.Add(-28 * time.Second)},
	}
	ref, err := a.referencePrice(trades)
	if err != nil {
		t.Fatalf("referencePrice: %v", err)
	}
	if ref != 600 {
		t.Fatalf("reference price = %v, want 600", ref)
	}

	// 有界重试：超出 4*2^9 秒后彻底失败
	stale := []market.Trade{{ID: 1, Price: 500, Ts: now.Add(-time.Hour)}}
	if _, err := a.referencePrice(stale); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("stale tape err = %v, want ErrNoSignal", err)
	}
}

func TestBucketBySecondAverages(t *testing.T) {
	trades := []market.Trade{
		{Price: 10, Ts: testBase},
		{Price: 20, Ts: testBase.Add(300 * time.Millisecond)},
		{Price: 40, Ts: testBase.Add(time.Second)},
	}
	ts, prices := bucketBySecond(trades)
	if len(ts) != 2 {
		t.Fatalf("buckets = %d, want 2", len(ts))
	}
	if prices[0] != 15 || prices[1] != 40 {
		t.Fatalf("bucket prices = %v, want [15 40]", prices)
	}
}

func TestPolyfitRecoversQuadratic(t *testing.T) {
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = 2 + 3*x[i] + x[i]*x[i]
	}
	p, err := polyfit(x, y, 2)
	if err != nil {
		t.Fatalf("polyfit: %v", err)
	}
	if got := p.at(5); math.Abs(got-42) > 1e-6 {
		t.Fatalf("p(5) = %v, want 42", got)
	}
}

func TestRollingMean(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4}, 2)
	if !math.IsNaN(out[0]) {
		t.Fatalf("out[0] = %v, want NaN", out[0])
	}
	want := []float64{0, 1.5, 2.5, 3.5}
	for i := 1; i < len(out); i++ {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

// 序列头部的 NaN 填充不得污染后面已满的窗口，链式平滑依赖这一点。
func TestRollingMeanRestartsAfterNaN(t *testing.T) {
	in := []float64{math.NaN(), math.NaN(), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := rollingMean(in, 3)
	for i := 0; i < 4; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("out[%d] = %v, want NaN", i, out[i])
		}
	}
	last := out[len(out)-1]
	if math.Abs(last-9) > 1e-12 {
		t.Fatalf("out[last] = %v, want 9", last)
	}
	for i := 4; i < len(out); i++ {
		if math.IsNaN(out[i]) {
			t.Fatalf("out[%d] is NaN, window is fully finite", i)
		}
	}
}

func TestDerivativeOfLine(t *testing.T) {
	f := []float64{0, 2, 4, 6, 8}
	d := derivative(f, 1)
	for i, v := range d {
		if math.Abs(v-2) > 1e-12 {
			t.Fatalf("d[%d] = %v, want 2", i, v)
		}
	}
}

type stubTape struct {
	trades []market.Trade
	err    error
}

func (s *stubTape) GetTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	return s.trades, s.err
}

func TestAdvisorRefreshPublishesAtomically(t *testing.T) {
	tape := &stubTape{trades: risingTape(20)}
	a := testAnalyzer(20)
	adv := NewAdvisor(a, tape, market.Pair{Base: "BTC", Quote: "USDT"}, time.Second, nil)

	if adv.Snapshot() != nil {
		t.Fatal("snapshot must be nil before first refresh")
	}
	if err := adv.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := adv.Snapshot()
	if snap == nil || snap.Profile != order.ProfileUp {
		t.Fatalf("snapshot = %+v, want UP", snap)
	}

	// 信号消失时缓存被清空，而不是留下陈旧方向
	tape.trades = tape.trades[:1]
	if err := adv.Refresh(context.Background()); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("err = %v, want ErrNoSignal", err)
	}
	if adv.Snapshot() != nil {
		t.Fatal("snapshot must be cleared on no-signal")
	}
}
