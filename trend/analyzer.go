package trend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"xmb-trader-go/market"
	"xmb-trader-go/order"
)

// Config 趋势分析参数。
type Config struct {
	RollingWindow       int           // 平滑窗口（价格曲线与导数各用一次）
	InterpolationDegree int           // 多项式拟合阶数上限
	GridSize            int           // 重采样网格点数
	ProfitMultiplier    float64       // |导数| -> profit markup 的放大系数
	ProfitFreeWeight    float64       // markup 下限偏置，平市也保持非平凡利润要求
	ReserveMultiplier   float64       // |导数| -> reserve markup 的放大系数（常配 0）
	MeanPricePeriod     time.Duration // 参考价短窗口
	MeanPriceAttempts   int           // 窗口翻倍重试次数上限
	TrendWindow         time.Duration // 参与拟合的成交回看窗口；0 表示全部
}

// DefaultConfig 返回经回测调定的默认参数。
func DefaultConfig() Config {
	return Config{
		RollingWindow:       6,
		InterpolationDegree: 20,
		GridSize:            100,
		ProfitMultiplier:    256,
		ProfitFreeWeight:    0.002,
		ReserveMultiplier:   0,
		MeanPricePeriod:     4 * time.Second,
		MeanPriceAttempts:   10,
	}
}

// Analyzer 把嘈杂的成交带转换为方向信号与所需利润率。
// 管线中任何异常或 NaN 都退化为 ErrNoSignal，绝不上抛崩溃。
type Analyzer struct {
	cfg Config
	now func() time.Time
}

func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = 6
	}
	if cfg.InterpolationDegree <= 0 {
		cfg.InterpolationDegree = 20
	}
	if cfg.GridSize < cfg.RollingWindow+3 {
		cfg.GridSize = 100
	}
	if cfg.MeanPricePeriod <= 0 {
		cfg.MeanPricePeriod = 4 * time.Second
	}
	if cfg.MeanPriceAttempts <= 0 {
		cfg.MeanPriceAttempts = 10
	}
	return &Analyzer{cfg: cfg, now: time.Now}
}

// SetClock 注入时钟，回测时替换为模拟时间。
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

// Analyze 在一个成交窗口上执行完整的信号管线。
func (a *Analyzer) Analyze(trades []market.Trade) (*Snapshot, error) {
	if a.cfg.TrendWindow > 0 {
		cutoff := a.now().Add(-a.cfg.TrendWindow)
		filtered := trades[:0:0]
		for _, t := range trades {
			if t.Ts.After(cutoff) {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}

	// 按整秒分桶、桶内取均值，去除同秒重复 tick 的噪声。
	ts, prices := bucketBySecond(trades)
	if len(ts) < 2 {
		return nil, fmt.Errorf("%w: %d distinct timestamps", ErrNoSignal, len(ts))
	}

	deriv, err := a.lastDerivative(ts, prices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSignal, err)
	}
	if math.IsNaN(deriv) || math.IsInf(deriv, 0) {
		return nil, fmt.Errorf("%w: derivative is not finite", ErrNoSignal)
	}

	refPrice, err := a.referencePrice(trades)
	if err != nil {
		return nil, err
	}

	profile := order.ProfileUp
	if deriv < 0 {
		profile = order.ProfileDown
	}
	return &Snapshot{
		Profile:        profile,
		ProfitMarkup:   math.Abs(deriv)*a.cfg.ProfitMultiplier + a.cfg.ProfitFreeWeight,
		ReserveMarkup:  math.Abs(deriv) * a.cfg.ReserveMultiplier,
		ReferencePrice: refPrice,
		ComputedAt:     a.now(),
	}, nil
}

// lastDerivative 拟合-重采样-平滑-求导，返回曲线末端的导数样本。
func (a *Analyzer) lastDerivative(ts, prices []float64) (float64, error) {
	poly, err := polyfit(ts, prices, a.cfg.InterpolationDegree)
	if err != nil {
		return 0, err
	}
	curve, step := poly.resample(ts[0], ts[len(ts)-1], a.cfg.GridSize)

	// 均值归一，让 multiplier 与绝对价位无关。
	mean := 0.0
	for _, v := range curve {
		mean += v
	}
	mean /= float64(len(curve))
	if mean == 0 || math.IsNaN(mean) {
		return 0, errDegenerateFit
	}
	for i := range curve {
		curve[i] /= mean
	}

	smoothed := rollingMean(curve, a.cfg.RollingWindow)
	deriv := derivative(smoothed, step)
	if len(deriv) == 0 {
		return 0, errDegenerateFit
	}
	smoothedDeriv := rollingMean(deriv, a.cfg.RollingWindow)
	return smoothedDeriv[len(smoothedDeriv)-1], nil
}

// referencePrice 短窗口算术均价；窗口内成交不足则翻倍重试，有界。
func (a *Analyzer) referencePrice(trades []market.Trade) (float64, error) {
	window := a.cfg.MeanPricePeriod
	now := a.now()
	for attempt := 0; attempt < a.cfg.MeanPriceAttempts; attempt++ {
		sum, n := 0.0, 0
		cutoff := now.Add(-window)
		for _, t := range trades {
			if !t.Ts.Before(cutoff) {
				sum += t.Price
				n++
			}
		}
		if n > 0 {
			return sum / float64(n), nil
		}
		window *= 2
	}
	return 0, fmt.Errorf("%w: no trades within reference window", ErrNoSignal)
}

// bucketBySecond 整秒聚合成交价，返回按时间升序的 (秒, 均价) 序列。
func bucketBySecond(trades []market.Trade) ([]float64, []float64) {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, t := range trades {
		sec := t.Ts.Unix()
		sums[sec] += t.Price
		counts[sec]++
	}
	secs := make([]int64, 0, len(sums))
	for s := range sums {
		secs = append(secs, s)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	ts := make([]float64, len(secs))
	prices := make([]float64, len(secs))
	for i, s := range secs {
		ts[i] = float64(s)
		prices[i] = sums[s] / float64(counts[s])
	}
	return ts, prices
}
