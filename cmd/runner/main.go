package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"xmb-trader-go/config"
	"xmb-trader-go/gateway"
	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/internal/engine"
	"xmb-trader-go/market"
	"xmb-trader-go/metrics"
	"xmb-trader-go/order"
	"xmb-trader-go/pricing"
	"xmb-trader-go/sizer"
	"xmb-trader-go/storage"
	"xmb-trader-go/trend"
)

// 实盘守护进程：信号 advisor + 订单 Worker + 指标 + systemd 看护。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := config.ValidateLive(cfg); err != nil {
		log.Fatalf("配置不满足实盘要求: %v", err)
	}

	appLog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer appLog.Close()

	pair, err := cfg.TradingPair()
	if err != nil {
		log.Fatalf("解析交易对失败: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.StartMetricsServer(cfg.Metrics.Addr)
		appLog.Info("Metrics server started", zap.String("addr", cfg.Metrics.Addr))
	}

	exmo := gateway.NewExmoClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret,
		gateway.NewTokenBucketLimiter(cfg.Exchange.RequestsPerSecond, cfg.Exchange.Burst))
	if cfg.Exchange.ExmoURL != "" {
		exmo.BaseURL = cfg.Exchange.ExmoURL
	}
	tape := gateway.NewBinanceTapeClient(
		gateway.NewTokenBucketLimiter(cfg.Exchange.RequestsPerSecond, cfg.Exchange.Burst))
	if cfg.Exchange.BinanceURL != "" {
		tape.BaseURL = cfg.Exchange.BinanceURL
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("初始化订单存储失败: %v", err)
	}
	defer closeStore()

	analyzer := trend.NewAnalyzer(signalConfig(cfg))
	advisor := trend.NewAdvisor(analyzer, tape, pair, cfg.AdvisorPeriod(), appLog)

	sz, err := sizer.New(sizerConfig(cfg), tape, pair, appLog)
	if err != nil {
		log.Fatalf("初始化下单量策略失败: %v", err)
	}
	pricer, err := pricing.New(pricingConfig(cfg))
	if err != nil {
		log.Fatalf("初始化定价失败: %v", err)
	}

	components := engine.Components{
		API:    exmo,
		Store:  store,
		Signal: advisor,
		Sizer:  sz,
		Pricer: pricer,
		Logger: appLog,
	}
	worker, err := engine.New(workerConfig(cfg, pair), components)
	if err != nil {
		log.Fatalf("初始化 Worker 失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	advisor.Start(ctx)
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("启动 Worker 失败: %v", err)
	}

	holder := &workerHolder{worker: worker}

	var watcher *config.Watcher
	if cfg.Reload.Enabled {
		watcher, err = config.NewWatcher(*cfgPath, cfg.ReloadCooldown(), appLog)
		if err != nil {
			log.Fatalf("初始化配置监听失败: %v", err)
		}
		err = watcher.Start(ctx, func(next config.Config) {
			holder.restart(ctx, workerConfig(next, pair), components, appLog)
		})
		if err != nil {
			log.Fatalf("启动配置监听失败: %v", err)
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go watchdogLoop(ctx, holder, interval)
	}

	appLog.Info("Trader started",
		zap.String("pair", pair.String()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("sizer", cfg.Sizer.Kind))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := holder.current().Stop(); err != nil {
		appLog.Warn("Worker stop", zap.Error(err))
	}
	advisor.Stop()
	appLog.Info("Trader exited")
}

// workerHolder 持有当前 Worker；配置热更新会原地重建它。
type workerHolder struct {
	mu     sync.Mutex
	worker *engine.Worker
}

func (h *workerHolder) current() *engine.Worker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worker
}

// restart 用新参数重建 Worker。组件不变，只有数值参数生效。
func (h *workerHolder) restart(ctx context.Context, cfg engine.Config, comps engine.Components, log *logger.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := engine.New(cfg, comps)
	if err != nil {
		log.Error("Reloaded config rejected, keeping running worker", zap.Error(err))
		return
	}
	if err := h.worker.Stop(); err != nil {
		log.Error("Worker stop during reload", zap.Error(err))
		return
	}
	if err := next.Start(ctx); err != nil {
		log.Error("Worker restart after reload", zap.Error(err))
		return
	}
	h.worker = next
	log.Info("Worker restarted with reloaded config")
}

// watchdogLoop 只要 Worker 还在跑就按 systemd 要求喂狗。
func watchdogLoop(ctx context.Context, holder *workerHolder, interval time.Duration) {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := holder.current().State()
			if state == engine.StateRunning || state == engine.StatePaused {
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}
}

func openStore(cfg config.Config) (order.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		js, err := storage.NewJSONStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return js, func() {}, nil
	}
}

func workerConfig(cfg config.Config, pair market.Pair) engine.Config {
	return engine.Config{
		Pair:                  pair,
		TickInterval:          cfg.TickInterval(),
		MaxReserveOrdersUp:    cfg.Trading.MaxReserveOrdersUp,
		MaxReserveOrdersDown:  cfg.Trading.MaxReserveOrdersDown,
		MinProfitMarkup:       cfg.Trading.MinProfitMarkup,
		ReservePriceDeviation: cfg.Trading.ReservePriceDeviation,
		OrderPriceDeviation:   cfg.Trading.OrderPriceDeviation,
		ConfirmRetryDelay:     time.Duration(cfg.Trading.ConfirmRetryDelayMs) * time.Millisecond,
	}
}

func signalConfig(cfg config.Config) trend.Config {
	return trend.Config{
		RollingWindow:       cfg.Signal.RollingWindow,
		InterpolationDegree: cfg.Signal.InterpolationDegree,
		GridSize:            cfg.Signal.GridSize,
		ProfitMultiplier:    cfg.Signal.ProfitMultiplier,
		ProfitFreeWeight:    cfg.Signal.ProfitFreeWeight,
		ReserveMultiplier:   cfg.Signal.ReserveMultiplier,
		MeanPricePeriod:     time.Duration(cfg.Signal.MeanPricePeriodMs) * time.Millisecond,
		MeanPriceAttempts:   cfg.Signal.MeanPriceAttempts,
		TrendWindow:         time.Duration(cfg.Signal.TrendWindowMs) * time.Millisecond,
	}
}

func sizerConfig(cfg config.Config) sizer.Config {
	return sizer.Config{
		Kind:            sizer.Kind(cfg.Sizer.Kind),
		DealSize:        cfg.Sizer.DealSize,
		MinDealSize:     cfg.Sizer.MinDealSize,
		TrendMultiplier: cfg.Sizer.TrendMultiplier,
		TrendDays:       cfg.Sizer.TrendDays,
		TrendDiffHours:  cfg.Sizer.TrendDiffHours,
		KDEMultiplier:   cfg.Sizer.KDEMultiplier,
		KDEBandwidth:    cfg.Sizer.KDEBandwidth,
		KDEDays:         cfg.Sizer.KDEDays,
	}
}

func pricingConfig(cfg config.Config) pricing.Config {
	return pricing.Config{
		Fee:       cfg.Trading.Fee,
		MinQty:    cfg.Trading.MinQty,
		DenomUp:   pricing.Denomination(cfg.Trading.ProfitDenomUp),
		DenomDown: pricing.Denomination(cfg.Trading.ProfitDenomDown),
	}
}
