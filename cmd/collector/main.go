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

	"go.uber.org/zap"

	"xmb-trader-go/config"
	"xmb-trader-go/gateway"
	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
	"xmb-trader-go/sim"
)

// 成交带采集器：订阅交易所成交流，按批写成磁盘成交带文件，
// 供回测与基于成交历史的下单量策略使用。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	outDir := flag.String("out", "data/tape", "成交带输出目录")
	perFile := flag.Int("perFile", 1000, "每个文件的成交条数")
	flushEvery := flag.Duration("flushEvery", time.Minute, "即使未满也按此周期落盘")
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
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("创建输出目录失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &tradeBuffer{
		dir:     *outDir,
		perFile: *perFile,
		trades:  make(map[int64]market.Trade),
		log:     appLog,
	}

	go runStream(ctx, pair, buf, appLog)
	go flushLoop(ctx, buf, *flushEvery)

	appLog.Info("Collector started",
		zap.String("pair", pair.String()),
		zap.String("out", *outDir))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	buf.flush() // 落盘残留
	appLog.Info("Collector exited")
}

// runStream 维持 websocket 订阅，断开后指数退避重连。
func runStream(ctx context.Context, pair market.Pair, buf *tradeBuffer, log *logger.Logger) {
	stream := gateway.NewBinanceTradeStream()
	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		err := stream.Run(ctx, pair, buf.add)
		if ctx.Err() != nil {
			return
		}
		log.Warn("Trade stream disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func flushLoop(ctx context.Context, buf *tradeBuffer, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buf.flush()
		}
	}
}

// tradeBuffer 按 trade_id 去重累积成交，满一批写一个成交带文件。
type tradeBuffer struct {
	dir     string
	perFile int
	log     *logger.Logger

	mu     sync.Mutex
	trades map[int64]market.Trade
}

func (b *tradeBuffer) add(t market.Trade) {
	b.mu.Lock()
	b.trades[t.ID] = t
	full := len(b.trades) >= b.perFile
	b.mu.Unlock()
	if full {
		b.flush()
	}
}

func (b *tradeBuffer) flush() {
	b.mu.Lock()
	if len(b.trades) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]market.Trade, 0, len(b.trades))
	for _, t := range b.trades {
		batch = append(batch, t)
	}
	b.trades = make(map[int64]market.Trade)
	b.mu.Unlock()

	if err := sim.WriteTapeFile(b.dir, time.Now(), batch); err != nil {
		b.log.Error("Tape file write failed", zap.Error(err))
		return
	}
	b.log.Info("Tape file written", zap.Int("trades", len(batch)))
}
