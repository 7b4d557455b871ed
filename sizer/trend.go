package sizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
	"xmb-trader-go/order"
)

// TrendSizer 按动量缩放下单量：方向与近期位移一致时放大，反向时缩小。
// 缩放系数为 1 + |位移| × multiplier，反向取其倒数。
type TrendSizer struct {
	tape market.TradeReader
	pair market.Pair
	log  *logger.Logger

	dealSize    float64
	minDealSize float64
	multiplier  float64
	window      time.Duration // 拉取成交的总回看区间
	diffWindow  time.Duration // 首尾价差的测量区间

	now func() time.Time
}

func newTrendSizer(cfg Config, tape market.TradeReader, pair market.Pair, log *logger.Logger) *TrendSizer {
	return &TrendSizer{
		tape:        tape,
		pair:        pair,
		log:         log,
		dealSize:    cfg.DealSize,
		minDealSize: cfg.MinDealSize,
		multiplier:  cfg.TrendMultiplier,
		window:      time.Duration(cfg.TrendDays) * 24 * time.Hour,
		diffWindow:  time.Duration(cfg.TrendDiffHours) * time.Hour,
		now:         time.Now,
	}
}

// SetClock 注入测试时钟。
func (s *TrendSizer) SetClock(now func() time.Time) { s.now = now }

func (s *TrendSizer) Size(ctx context.Context, price float64, profile order.Profile) float64 {
	size, err := s.size(ctx, profile)
	if err != nil {
		if s.log != nil {
			s.log.Warn("Cannot calculate deal size, using fallback",
				zap.String("sizer", string(KindTrend)), zap.Error(err))
		}
		return s.dealSize
	}
	return size
}

func (s *TrendSizer) size(ctx context.Context, profile order.Profile) (float64, error) {
	trades, err := s.tape.GetTrades(ctx, s.pair)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.window)
	recent := trades[:0:0]
	for _, t := range trades {
		if t.Ts.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) < 2 {
		return 0, fmt.Errorf("not enough trades in window: %d", len(recent))
	}

	last := recent[len(recent)-1]
	diffCutoff := last.Ts.Add(-s.diffWindow)
	var first *market.Trade
	for i := range recent {
		if !recent[i].Ts.Before(diffCutoff) {
			first = &recent[i]
			break
		}
	}
	if first == nil || first.Price == 0 {
		return 0, fmt.Errorf("no trade at the start of the diff window")
	}

	diff := (last.Price - first.Price) / first.Price
	base := math.Abs(diff)*s.multiplier + 1
	mult := base
	// 方向与位移相反时反向缩小
	if (profile == order.ProfileUp && diff < 0) || (profile == order.ProfileDown && diff > 0) {
		mult = 1 / base
	}
	return max(mult*s.dealSize, s.minDealSize), nil
}
