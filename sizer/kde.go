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

// KDESizer 用近期成交价的高斯核密度估计给候选价打分：
// 候选价落在有利一侧的概率质量越大，下的储备单越大。
// UP 看 [price, +inf)，DOWN 看 (0, price]。
type KDESizer struct {
	tape market.TradeReader
	pair market.Pair
	log  *logger.Logger

	dealSize   float64
	multiplier float64
	bandwidth  float64 // 以报价币计的绝对带宽
	window     time.Duration

	now func() time.Time
}

func newKDESizer(cfg Config, tape market.TradeReader, pair market.Pair, log *logger.Logger) *KDESizer {
	return &KDESizer{
		tape:       tape,
		pair:       pair,
		log:        log,
		dealSize:   cfg.DealSize,
		multiplier: cfg.KDEMultiplier,
		bandwidth:  cfg.KDEBandwidth,
		window:     time.Duration(cfg.KDEDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// SetClock 注入测试时钟。
func (s *KDESizer) SetClock(now func() time.Time) { s.now = now }

func (s *KDESizer) Size(ctx context.Context, price float64, profile order.Profile) float64 {
	size, err := s.size(ctx, price, profile)
	if err != nil {
		if s.log != nil {
			s.log.Warn("Cannot calculate deal size, using fallback",
				zap.String("sizer", string(KindKDE)), zap.Error(err))
		}
		return s.dealSize
	}
	return size
}

func (s *KDESizer) size(ctx context.Context, price float64, profile order.Profile) (float64, error) {
	trades, err := s.tape.GetTrades(ctx, s.pair)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.window)
	var prices []float64
	for _, t := range trades {
		if t.Ts.After(cutoff) {
			prices = append(prices, t.Price)
		}
	}
	if len(prices) < 2 {
		return 0, fmt.Errorf("not enough trades in window: %d", len(prices))
	}

	var left, right float64
	switch profile {
	case order.ProfileUp:
		left, right = price, math.Inf(1)
	case order.ProfileDown:
		left, right = 0, price
	default:
		return 0, fmt.Errorf("profile %q not supported", profile)
	}

	mass := integrateBox(prices, s.bandwidth, left, right)
	return max(s.dealSize, mass*s.multiplier*s.dealSize), nil
}

// integrateBox 计算高斯混合密度在 [left, right] 上的积分：
// 每个样本点贡献一个带宽为 h 的正态核，取 CDF 之差的均值。
func integrateBox(samples []float64, h, left, right float64) float64 {
	var sum float64
	for _, x := range samples {
		sum += normCDF((right-x)/h) - normCDF((left-x)/h)
	}
	return sum / float64(len(samples))
}

func normCDF(z float64) float64 {
	if math.IsInf(z, 1) {
		return 1
	}
	if math.IsInf(z, -1) {
		return 0
	}
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
