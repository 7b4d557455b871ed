package sizer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"xmb-trader-go/market"
	"xmb-trader-go/order"
)

type stubTape struct {
	trades []market.Trade
	err    error
}

func (s *stubTape) GetTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	return s.trades, s.err
}

var sizerPair = market.Pair{Base: "BTC", Quote: "USDT"}

func TestNewDispatchesOnKind(t *testing.T) {
	tape := &stubTape{}
	cases := []struct {
		kind    Kind
		want    any
		wantErr bool
	}{
		{KindConst, &ConstSizer{}, false},
		{KindTrend, &TrendSizer{}, false},
		{KindKDE, &KDESizer{}, false},
		{Kind("bogus"), nil, true},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Kind = tc.kind
		s, err := New(cfg, tape, sizerPair, nil)
		if tc.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", tc.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q): %v", tc.kind, err)
		}
		switch tc.kind {
		case KindConst:
			if _, ok := s.(*ConstSizer); !ok {
				t.Errorf("New(%q) = %T", tc.kind, s)
			}
		case KindTrend:
			if _, ok := s.(*TrendSizer); !ok {
				t.Errorf("New(%q) = %T", tc.kind, s)
			}
		case KindKDE:
			if _, ok := s.(*KDESizer); !ok {
				t.Errorf("New(%q) = %T", tc.kind, s)
			}
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DealSize = 0
	if _, err := New(cfg, &stubTape{}, sizerPair, nil); err == nil {
		t.Fatal("expected error for zero deal size")
	}
	cfg = DefaultConfig()
	cfg.Kind = KindTrend
	if _, err := New(cfg, nil, sizerPair, nil); err == nil {
		t.Fatal("expected error for trend sizer without tape")
	}
}

func TestConstSizer(t *testing.T) {
	s := NewConstSizer(0.002)
	if got := s.Size(context.Background(), 1234, order.ProfileUp); got != 0.002 {
		t.Fatalf("Size = %v, want 0.002", got)
	}
}

func TestTrendSizerScalesWithMomentum(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tape := &stubTape{trades: []market.Trade{
		{ID: 1, Price: 100, Ts: now.Add(-2 * time.Hour)},
		{ID: 2, Price: 110, Ts: now},
	}}
	cfg := DefaultConfig()
	cfg.Kind = KindTrend
	cfg.MinDealSize = 0.0001
	s, err := New(cfg, tape, sizerPair, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := s.(*TrendSizer)
	ts.SetClock(func() time.Time { return now })

	// 位移 +10%，multiplier 10 → 系数 2
	up := ts.Size(context.Background(), 110, order.ProfileUp)
	if math.Abs(up-0.002) > 1e-12 {
		t.Fatalf("UP size = %v, want 0.002", up)
	}
	// 反向取倒数
	down := ts.Size(context.Background(), 110, order.ProfileDown)
	if math.Abs(down-0.0005) > 1e-12 {
		t.Fatalf("DOWN size = %v, want 0.0005", down)
	}
}

func TestTrendSizerFloorsAtMinDealSize(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tape := &stubTape{trades: []market.Trade{
		{ID: 1, Price: 100, Ts: now.Add(-time.Hour)},
		{ID: 2, Price: 200, Ts: now},
	}}
	cfg := DefaultConfig()
	cfg.Kind = KindTrend
	cfg.MinDealSize = 0.0008
	s, _ := New(cfg, tape, sizerPair, nil)
	ts := s.(*TrendSizer)
	ts.SetClock(func() time.Time { return now })

	// 位移 +100% → 反向系数 1/11，裸值 0.001/11 低于下限
	got := ts.Size(context.Background(), 200, order.ProfileDown)
	if got != 0.0008 {
		t.Fatalf("size = %v, want min deal size 0.0008", got)
	}
}

func TestTrendSizerFallsBackOnError(t *testing.T) {
	tape := &stubTape{err: errors.New("boom")}
	cfg := DefaultConfig()
	cfg.Kind = KindTrend
	s, _ := New(cfg, tape, sizerPair, nil)
	if got := s.Size(context.Background(), 100, order.ProfileUp); got != cfg.DealSize {
		t.Fatalf("size = %v, want fallback %v", got, cfg.DealSize)
	}
}

func TestKDESizerScoresTailMass(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tape := &stubTape{trades: []market.Trade{
		{ID: 1, Price: 990, Ts: now.Add(-time.Minute)},
		{ID: 2, Price: 1010, Ts: now},
	}}
	cfg := DefaultConfig()
	cfg.Kind = KindKDE
	cfg.KDEBandwidth = 10
	s, err := New(cfg, tape, sizerPair, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ks := s.(*KDESizer)
	ks.SetClock(func() time.Time { return now })

	// 样本关于 1000 对称，右侧质量恰为 0.5 → 0.5*5*0.001
	got := ks.Size(context.Background(), 1000, order.ProfileUp)
	if math.Abs(got-0.0025) > 1e-9 {
		t.Fatalf("size = %v, want 0.0025", got)
	}

	// 远离样本的深尾质量趋近 0，兜底回基础数量
	deep := ks.Size(context.Background(), 2000, order.ProfileUp)
	if deep != cfg.DealSize {
		t.Fatalf("deep-tail size = %v, want floor %v", deep, cfg.DealSize)
	}
}

func TestKDESizerFallsBackOnError(t *testing.T) {
	tape := &stubTape{err: errors.New("boom")}
	cfg := DefaultConfig()
	cfg.Kind = KindKDE
	s, _ := New(cfg, tape, sizerPair, nil)
	if got := s.Size(context.Background(), 100, order.ProfileDown); got != cfg.DealSize {
		t.Fatalf("size = %v, want fallback %v", got, cfg.DealSize)
	}
}
