// Package sizer 负责把 (参考价, 方向) 映射为下单数量。
// 所有实现共享同一约定：计算失败时退回配置的基础数量，绝不向调用方抛错。
package sizer

import (
	"context"
	"fmt"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
	"xmb-trader-go/order"
)

// Kind 选择仓位策略。
type Kind string

const (
	KindConst Kind = "const"
	KindTrend Kind = "trend"
	KindKDE   Kind = "kde"
)

// Sizer 计算一笔储备单的数量（以基础币计）。
// 实现必须自行吸收计算错误并退化到基础数量。
type Sizer interface {
	Size(ctx context.Context, price float64, profile order.Profile) float64
}

// Config 汇总全部策略的参数；未用到的字段被对应策略忽略。
type Config struct {
	Kind Kind

	DealSize    float64 // 基础下单量，也是出错时的回退值
	MinDealSize float64 // 交易所最小可成交量下限

	// trend 策略
	TrendMultiplier float64
	TrendDays       int
	TrendDiffHours  int

	// kde 策略
	KDEMultiplier float64
	KDEBandwidth  float64
	KDEDays       int
}

// DefaultConfig 返回与实盘长期运行一致的默认参数。
func DefaultConfig() Config {
	return Config{
		Kind:            KindConst,
		DealSize:        0.001,
		MinDealSize:     0.001,
		TrendMultiplier: 10,
		TrendDays:       7,
		TrendDiffHours:  24,
		KDEMultiplier:   5,
		KDEBandwidth:    150,
		KDEDays:         7,
	}
}

// New creates a sizer instance based on the configured kind.
func New(cfg Config, tape market.TradeReader, pair market.Pair, log *logger.Logger) (Sizer, error) {
	if cfg.DealSize <= 0 {
		return nil, fmt.Errorf("sizer: deal size must be positive, got %v", cfg.DealSize)
	}
	switch cfg.Kind {
	case KindConst:
		return &ConstSizer{dealSize: cfg.DealSize}, nil
	case KindTrend:
		if tape == nil {
			return nil, fmt.Errorf("sizer: trend sizer requires a trade reader")
		}
		return newTrendSizer(cfg, tape, pair, log), nil
	case KindKDE:
		if tape == nil {
			return nil, fmt.Errorf("sizer: kde sizer requires a trade reader")
		}
		return newKDESizer(cfg, tape, pair, log), nil
	default:
		return nil, fmt.Errorf("sizer: unknown kind %q", cfg.Kind)
	}
}

// ConstSizer 固定数量，不看行情。
type ConstSizer struct {
	dealSize float64
}

// NewConstSizer creates a fixed-quantity sizer.
func NewConstSizer(dealSize float64) *ConstSizer {
	return &ConstSizer{dealSize: dealSize}
}

func (s *ConstSizer) Size(ctx context.Context, price float64, profile order.Profile) float64 {
	return s.dealSize
}
