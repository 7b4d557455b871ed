package config

import (
	"errors"
	"fmt"

	"xmb-trader-go/market"
)

// Validate ensures required fields are present and numeric fields are
// inside their sane ranges.
func Validate(cfg Config) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if _, err := market.ParsePair(cfg.Pair); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	if cfg.Exchange.RequestsPerSecond <= 0 {
		return errors.New("exchange.requestsPerSecond must be > 0")
	}
	if cfg.Exchange.Burst <= 0 {
		return errors.New("exchange.burst must be > 0")
	}

	t := cfg.Trading
	if t.Fee < 0 || t.Fee >= 0.5 {
		return fmt.Errorf("trading.fee must be in [0, 0.5), got %v", t.Fee)
	}
	if t.MinProfitMarkup < 0 {
		return errors.New("trading.minProfitMarkup must be >= 0")
	}
	if t.ReservePriceDeviation <= 0 {
		return errors.New("trading.reservePriceDeviation must be > 0")
	}
	if t.OrderPriceDeviation <= 0 {
		return errors.New("trading.orderPriceDeviation must be > 0")
	}
	if t.MaxReserveOrdersUp <= 0 || t.MaxReserveOrdersDown <= 0 {
		return errors.New("trading.maxReserveOrders{Up,Down} must be > 0")
	}
	if t.ProfitDenomUp != "base" && t.ProfitDenomUp != "quote" {
		return fmt.Errorf("trading.profitDenomUp must be base or quote, got %q", t.ProfitDenomUp)
	}
	if t.ProfitDenomDown != "base" && t.ProfitDenomDown != "quote" {
		return fmt.Errorf("trading.profitDenomDown must be base or quote, got %q", t.ProfitDenomDown)
	}
	if t.MinQty < 0 {
		return errors.New("trading.minQty must be >= 0")
	}
	if t.TickIntervalMs <= 0 {
		return errors.New("trading.tickIntervalMs must be > 0")
	}
	if t.AdvisorPeriodMs <= 0 {
		return errors.New("trading.advisorPeriodMs must be > 0")
	}
	if t.ConfirmRetryDelayMs < 0 {
		return errors.New("trading.confirmRetryDelayMs must be >= 0")
	}

	s := cfg.Signal
	if s.RollingWindow <= 0 {
		return errors.New("signal.rollingWindow must be > 0")
	}
	if s.InterpolationDegree <= 0 {
		return errors.New("signal.interpolationDegree must be > 0")
	}
	if s.GridSize <= 1 {
		return errors.New("signal.gridSize must be > 1")
	}
	if s.ProfitMultiplier <= 0 {
		return errors.New("signal.profitMultiplier must be > 0")
	}
	if s.ProfitFreeWeight < 0 {
		return errors.New("signal.profitFreeWeight must be >= 0")
	}
	if s.ReserveMultiplier < 0 {
		return errors.New("signal.reserveMultiplier must be >= 0")
	}
	if s.MeanPricePeriodMs <= 0 {
		return errors.New("signal.meanPricePeriodMs must be > 0")
	}
	if s.MeanPriceAttempts <= 0 {
		return errors.New("signal.meanPriceAttempts must be > 0")
	}
	if s.TrendWindowMs < 0 {
		return errors.New("signal.trendWindowMs must be >= 0")
	}

	sz := cfg.Sizer
	switch sz.Kind {
	case "const", "trend", "kde":
	default:
		return fmt.Errorf("sizer.kind must be const, trend or kde, got %q", sz.Kind)
	}
	if sz.DealSize <= 0 {
		return errors.New("sizer.dealSize must be > 0")
	}
	if sz.MinDealSize <= 0 {
		return errors.New("sizer.minDealSize must be > 0")
	}
	if sz.Kind == "trend" && (sz.TrendMultiplier <= 0 || sz.TrendDays <= 0 || sz.TrendDiffHours <= 0) {
		return errors.New("sizer trend params must be > 0")
	}
	if sz.Kind == "kde" && (sz.KDEMultiplier <= 0 || sz.KDEBandwidth <= 0 || sz.KDEDays <= 0) {
		return errors.New("sizer kde params must be > 0")
	}

	switch cfg.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be json or sqlite, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Path == "" {
		return errors.New("storage.path is required")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if cfg.Reload.CooldownMs < 0 {
		return errors.New("reload.cooldownMs must be >= 0")
	}
	return nil
}

// ValidateLive additionally requires API credentials; backtests run
// without them.
func ValidateLive(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		return errors.New("exchange.apiKey/apiSecret is required (or XMB_API_KEY/XMB_API_SECRET)")
	}
	return nil
}
