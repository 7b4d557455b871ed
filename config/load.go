package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
)

// Config holds the full daemon configuration. Every tunable is an
// explicit named field with a default from DefaultConfig; unknown YAML
// keys are rejected at load time.
type Config struct {
	Env      string         `yaml:"env"`
	Pair     string         `yaml:"pair"` // BASE_QUOTE, 例如 BTC_USD
	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Signal   SignalConfig   `yaml:"signal"`
	Sizer    SizerConfig    `yaml:"sizer"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      logger.Config  `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Reload   ReloadConfig   `yaml:"reload"`
}

// ExchangeConfig 交易所接入参数。密钥通常通过环境变量注入。
type ExchangeConfig struct {
	APIKey            string  `yaml:"apiKey"`
	APISecret         string  `yaml:"apiSecret"`
	ExmoURL           string  `yaml:"exmoURL"`           // 交易 API 地址
	BinanceURL        string  `yaml:"binanceURL"`        // 公共成交带地址
	RequestsPerSecond float64 `yaml:"requestsPerSecond"` // 限速速率
	Burst             int     `yaml:"burst"`             // 限速突发额度
}

// TradingConfig 下单核心参数，全部为小数比例（0.002 = 0.2%）。
type TradingConfig struct {
	Fee                   float64 `yaml:"fee"`                   // 交易所手续费率
	MinProfitMarkup       float64 `yaml:"minProfitMarkup"`       // 低于该利润率不建仓
	ReservePriceDeviation float64 `yaml:"reservePriceDeviation"` // 挂单价漂移撤单阈值
	OrderPriceDeviation   float64 `yaml:"orderPriceDeviation"`   // 同向订单最小价差比例
	MaxReserveOrdersUp    int     `yaml:"maxReserveOrdersUp"`    // UP 存活储备单上限
	MaxReserveOrdersDown  int     `yaml:"maxReserveOrdersDown"`  // DOWN 存活储备单上限
	ProfitDenomUp         string  `yaml:"profitDenomUp"`         // base 或 quote
	ProfitDenomDown       string  `yaml:"profitDenomDown"`       // base 或 quote
	MinQty                float64 `yaml:"minQty"`                // 交易所最小可下单量
	TickIntervalMs        int     `yaml:"tickIntervalMs"`        // Worker tick 周期
	AdvisorPeriodMs       int     `yaml:"advisorPeriodMs"`       // 信号刷新周期
	ConfirmRetryDelayMs   int     `yaml:"confirmRetryDelayMs"`   // 下单确认重试等待
}

// SignalConfig 趋势信号管线参数。
type SignalConfig struct {
	RollingWindow       int     `yaml:"rollingWindow"`       // 平滑窗口
	InterpolationDegree int     `yaml:"interpolationDegree"` // 拟合阶数上限
	GridSize            int     `yaml:"gridSize"`            // 重采样网格点数
	ProfitMultiplier    float64 `yaml:"profitMultiplier"`    // |导数| -> markup 放大系数
	ProfitFreeWeight    float64 `yaml:"profitFreeWeight"`    // markup 下限偏置
	ReserveMultiplier   float64 `yaml:"reserveMultiplier"`   // |导数| -> 储备加成系数
	MeanPricePeriodMs   int     `yaml:"meanPricePeriodMs"`   // 参考价短窗口
	MeanPriceAttempts   int     `yaml:"meanPriceAttempts"`   // 窗口翻倍重试上限
	TrendWindowMs       int     `yaml:"trendWindowMs"`       // 拟合回看窗口，0 为全部
}

// SizerConfig 下单量策略参数。
type SizerConfig struct {
	Kind            string  `yaml:"kind"`            // const、trend 或 kde
	DealSize        float64 `yaml:"dealSize"`        // 基础下单量
	MinDealSize     float64 `yaml:"minDealSize"`     // 下单量下限
	TrendMultiplier float64 `yaml:"trendMultiplier"` // trend 策略放大系数
	TrendDays       int     `yaml:"trendDays"`       // trend 回看天数
	TrendDiffHours  int     `yaml:"trendDiffHours"`  // trend 差分窗口（小时）
	KDEMultiplier   float64 `yaml:"kdeMultiplier"`   // kde 概率质量放大系数
	KDEBandwidth    float64 `yaml:"kdeBandwidth"`    // kde 绝对带宽
	KDEDays         int     `yaml:"kdeDays"`         // kde 回看天数
}

// StorageConfig 订单存储后端。
type StorageConfig struct {
	Backend string `yaml:"backend"` // json 或 sqlite
	Path    string `yaml:"path"`    // json: 目录；sqlite: 数据库文件
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ReloadConfig 配置热更新开关；冷却期内的重复写入事件被忽略。
type ReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	CooldownMs int  `yaml:"cooldownMs"`
}

// DefaultConfig returns the backtest-calibrated defaults. Load starts
// from these so a YAML file only needs to name what it changes.
func DefaultConfig() Config {
	return Config{
		Env:  "dev",
		Pair: "BTC_USD",
		Exchange: ExchangeConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Trading: TradingConfig{
			Fee:                   0.002,
			MinProfitMarkup:       0.001,
			ReservePriceDeviation: 0.002,
			OrderPriceDeviation:   0.01,
			MaxReserveOrdersUp:    5,
			MaxReserveOrdersDown:  5,
			ProfitDenomUp:         "quote",
			ProfitDenomDown:       "base",
			MinQty:                0.001,
			TickIntervalMs:        1000,
			AdvisorPeriodMs:       5000,
			ConfirmRetryDelayMs:   1000,
		},
		Signal: SignalConfig{
			RollingWindow:       6,
			InterpolationDegree: 20,
			GridSize:            100,
			ProfitMultiplier:    256,
			ProfitFreeWeight:    0.002,
			ReserveMultiplier:   0,
			MeanPricePeriodMs:   4000,
			MeanPriceAttempts:   10,
		},
		Sizer: SizerConfig{
			Kind:            "const",
			DealSize:        0.001,
			MinDealSize:     0.001,
			TrendMultiplier: 10,
			TrendDays:       7,
			TrendDiffHours:  24,
			KDEMultiplier:   5,
			KDEBandwidth:    150,
			KDEDays:         7,
		},
		Storage: StorageConfig{
			Backend: "json",
			Path:    "data/orders",
		},
		Log: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Reload: ReloadConfig{
			Enabled:    true,
			CooldownMs: 5000,
		},
	}
}

// Load reads YAML config from path on top of the defaults. Unknown
// keys are an error, not a silent no-op.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides API credentials
// from env vars if present.
func LoadWithEnvOverrides(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("XMB_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("XMB_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	return cfg, Validate(cfg)
}

// TradingPair 返回解析后的交易对。
func (c Config) TradingPair() (market.Pair, error) {
	return market.ParsePair(c.Pair)
}

// TickInterval 返回 Worker tick 周期。
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Trading.TickIntervalMs) * time.Millisecond
}

// AdvisorPeriod 返回信号刷新周期。
func (c Config) AdvisorPeriod() time.Duration {
	return time.Duration(c.Trading.AdvisorPeriodMs) * time.Millisecond
}

// ReloadCooldown 返回热更新冷却时间。
func (c Config) ReloadCooldown() time.Duration {
	return time.Duration(c.Reload.CooldownMs) * time.Millisecond
}
