package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"xmb-trader-go/config"
	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/internal/engine"
	"xmb-trader-go/market"
	"xmb-trader-go/order"
	"xmb-trader-go/pricing"
	"xmb-trader-go/sim"
	"xmb-trader-go/sizer"
	"xmb-trader-go/storage"
	"xmb-trader-go/trend"
)

// 历史成交带回测：模拟时钟逐秒推进，advisor 与 Worker 与实盘
// 完全同构，只是交易所换成模拟器。
// 用法：
//
//	go run ./cmd/backtest -config configs/config.yaml -tape data/tape -out backtest-out
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	tapeDir := flag.String("tape", "data/tape", "成交带目录")
	outDir := flag.String("out", "backtest-out", "订单存储输出目录")
	initialBase := flag.Float64("initialBase", 0.01, "初始基础货币余额")
	initialQuote := flag.Float64("initialQuote", 100, "初始计价货币余额")
	statEvery := flag.Int("statEvery", 1000, "每多少个模拟秒打印一次统计")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
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

	trades, err := sim.NewTape(*tapeDir, 0).Load()
	if err != nil {
		log.Fatalf("读取成交带失败: %v", err)
	}

	simulator, err := sim.NewSimulator(pair, trades, sim.Config{
		InitialBase:  *initialBase,
		InitialQuote: *initialQuote,
		Fee:          cfg.Trading.Fee,
		LastDeals:    100,
	}, appLog)
	if err != nil {
		log.Fatalf("初始化模拟器失败: %v", err)
	}

	store, err := storage.NewJSONStore(*outDir)
	if err != nil {
		log.Fatalf("初始化订单存储失败: %v", err)
	}

	analyzer := trend.NewAnalyzer(trend.Config{
		RollingWindow:       cfg.Signal.RollingWindow,
		InterpolationDegree: cfg.Signal.InterpolationDegree,
		GridSize:            cfg.Signal.GridSize,
		ProfitMultiplier:    cfg.Signal.ProfitMultiplier,
		ProfitFreeWeight:    cfg.Signal.ProfitFreeWeight,
		ReserveMultiplier:   cfg.Signal.ReserveMultiplier,
		MeanPricePeriod:     time.Duration(cfg.Signal.MeanPricePeriodMs) * time.Millisecond,
		MeanPriceAttempts:   cfg.Signal.MeanPriceAttempts,
		TrendWindow:         time.Duration(cfg.Signal.TrendWindowMs) * time.Millisecond,
	})
	analyzer.SetClock(simulator.Clock)

	advisor := trend.NewAdvisor(analyzer, simulator, pair, cfg.AdvisorPeriod(), appLog)

	sz, err := sizer.New(sizer.Config{
		Kind:            sizer.Kind(cfg.Sizer.Kind),
		DealSize:        cfg.Sizer.DealSize,
		MinDealSize:     cfg.Sizer.MinDealSize,
		TrendMultiplier: cfg.Sizer.TrendMultiplier,
		TrendDays:       cfg.Sizer.TrendDays,
		TrendDiffHours:  cfg.Sizer.TrendDiffHours,
		KDEMultiplier:   cfg.Sizer.KDEMultiplier,
		KDEBandwidth:    cfg.Sizer.KDEBandwidth,
		KDEDays:         cfg.Sizer.KDEDays,
	}, simulator, pair, appLog)
	if err != nil {
		log.Fatalf("初始化下单量策略失败: %v", err)
	}
	if cs, ok := sz.(interface{ SetClock(func() time.Time) }); ok {
		cs.SetClock(simulator.Clock)
	}

	pricer, err := pricing.New(pricing.Config{
		Fee:       cfg.Trading.Fee,
		MinQty:    cfg.Trading.MinQty,
		DenomUp:   pricing.Denomination(cfg.Trading.ProfitDenomUp),
		DenomDown: pricing.Denomination(cfg.Trading.ProfitDenomDown),
	})
	if err != nil {
		log.Fatalf("初始化定价失败: %v", err)
	}

	worker, err := engine.New(engine.Config{
		Pair:                  pair,
		TickInterval:          cfg.TickInterval(),
		MaxReserveOrdersUp:    cfg.Trading.MaxReserveOrdersUp,
		MaxReserveOrdersDown:  cfg.Trading.MaxReserveOrdersDown,
		MinProfitMarkup:       cfg.Trading.MinProfitMarkup,
		ReservePriceDeviation: cfg.Trading.ReservePriceDeviation,
		OrderPriceDeviation:   cfg.Trading.OrderPriceDeviation,
		ConfirmRetryDelay:     0,
	}, engine.Components{
		API:    simulator,
		Store:  store,
		Signal: advisor,
		Sizer:  sz,
		Pricer: pricer,
		Logger: appLog,
	})
	if err != nil {
		log.Fatalf("初始化 Worker 失败: %v", err)
	}
	worker.SetClock(simulator.Clock)

	ctx := context.Background()
	advisorEvery := int(cfg.AdvisorPeriod() / time.Second)
	if advisorEvery <= 0 {
		advisorEvery = 1
	}

	clock := simulator.Clock()
	end := simulator.MaxTime()
	start := clock
	step := 0
	for clock.Before(end) {
		clock = clock.Add(time.Second)
		step++
		simulator.Advance(clock)
		if step%advisorEvery == 0 {
			_ = advisor.Refresh(ctx) // 无信号是正常结果
		}
		worker.Tick(ctx)
		if *statEvery > 0 && step%*statEvery == 0 {
			printStats(simulator, store, pair, cfg.Trading.Fee, clock)
		}
	}

	fmt.Printf("回测结束: %s -> %s (%d 模拟秒)\n", start.Format(time.RFC3339), end.Format(time.RFC3339), step)
	printStats(simulator, store, pair, cfg.Trading.Fee, clock)
	stats := worker.Stats()
	fmt.Printf("tick=%d created=%d canceled=%d completed=%d errors=%d\n",
		stats.TotalTicks, stats.TotalCreated, stats.TotalCanceled, stats.TotalCompleted, stats.TotalErrors)
}

func printStats(s *sim.Simulator, store order.Store, pair market.Pair, fee float64, now time.Time) {
	ctx := context.Background()
	balances, err := s.GetBalances(ctx)
	if err != nil {
		log.Printf("读取余额失败: %v", err)
	}
	withOrders := s.BalancesWithOrders()
	theor := theorBalances(ctx, s, store, pair, fee)
	markup, err := store.GetStats(time.Time{}, time.Time{})
	if err != nil {
		log.Printf("读取统计失败: %v", err)
	}

	fmt.Printf("%s  %s=%.6f %s=%.2f | with_orders %s=%.6f %s=%.2f | theor %s=%.6f %s=%.2f | markup UP=%.4f DOWN=%.4f\n",
		now.Format(time.RFC3339),
		pair.Base, balances[pair.Base], pair.Quote, balances[pair.Quote],
		pair.Base, withOrders[pair.Base], pair.Quote, withOrders[pair.Quote],
		pair.Base, theor[pair.Base], pair.Quote, theor[pair.Quote],
		markup[order.ProfileUp], markup[order.ProfileDown])
}

// theorBalances 把所有未成交挂单按“撤单退款 + 利润单按挂单价成交”
// 折算回余额，反映当前仓位的理论价值。
func theorBalances(ctx context.Context, s *sim.Simulator, store order.Store, pair market.Pair, fee float64) map[string]float64 {
	balances, err := s.GetBalances(ctx)
	if err != nil {
		log.Printf("读取余额失败: %v", err)
	}
	out := map[string]float64{
		pair.Base:  balances[pair.Base],
		pair.Quote: balances[pair.Quote],
	}
	open, err := store.GetOpenOrders()
	if err != nil {
		log.Printf("读取挂单失败: %v", err)
		return out
	}
	for _, o := range open {
		if o.Status != order.StatusOpen {
			continue
		}
		switch {
		case o.Type == order.TypeReserve && o.Profile == order.ProfileUp:
			out[pair.Quote] += o.Quantity * o.Price
		case o.Type == order.TypeReserve && o.Profile == order.ProfileDown:
			out[pair.Base] += o.Quantity
		case o.Type == order.TypeProfit && o.Profile == order.ProfileUp:
			out[pair.Quote] += o.Quantity * o.Price * (1 - fee)
		case o.Type == order.TypeProfit && o.Profile == order.ProfileDown:
			out[pair.Base] += o.Quantity * (1 - fee)
		}
	}
	return out
}
