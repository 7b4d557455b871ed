package trend

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
)

// Advisor 在独立周期里重算趋势快照，向 Worker 暴露缓存结果。
// 快照发布是原子指针替换：单写者（advisor 循环）、多读者，无锁。
type Advisor struct {
	analyzer *Analyzer
	tape     market.TradeReader
	pair     market.Pair
	period   time.Duration
	logger   *logger.Logger

	snapshot atomic.Pointer[Snapshot]

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewAdvisor(analyzer *Analyzer, tape market.TradeReader, pair market.Pair, period time.Duration, log *logger.Logger) *Advisor {
	if period <= 0 {
		period = 5 * time.Second
	}
	return &Advisor{
		analyzer: analyzer,
		tape:     tape,
		pair:     pair,
		period:   period,
		logger:   log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start 启动后台计算循环。
func (a *Advisor) Start(ctx context.Context) {
	go a.run(ctx)
}

// Stop 停止循环并等待退出。
func (a *Advisor) Stop() {
	close(a.stopChan)
	<-a.doneChan
}

// Snapshot 返回最近一次成功计算的快照；尚无信号时返回 nil。
// 返回值是不可变的，调用方不得修改。
func (a *Advisor) Snapshot() *Snapshot {
	return a.snapshot.Load()
}

// Refresh 立即执行一次计算并发布。回测驱动器直接调用它而不开启循环。
func (a *Advisor) Refresh(ctx context.Context) error {
	trades, err := a.tape.GetTrades(ctx, a.pair)
	if err != nil {
		return err
	}
	snap, err := a.analyzer.Analyze(trades)
	if err != nil {
		if errors.Is(err, ErrNoSignal) {
			// 无信号也是结果：清空缓存，让 Worker 退到纯对账模式。
			a.snapshot.Store(nil)
		}
		return err
	}
	a.snapshot.Store(snap)
	return nil
}

func (a *Advisor) run(ctx context.Context) {
	defer close(a.doneChan)

	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				if errors.Is(err, ErrNoSignal) {
					a.logger.Debug("No trend signal", zap.Error(err))
				} else {
					a.logger.Error("Advisor refresh failed", zap.Error(err))
				}
			} else if snap := a.Snapshot(); snap != nil {
				a.logger.Debug("Published trend snapshot",
					zap.String("profile", string(snap.Profile)),
					zap.Float64("profit_markup", snap.ProfitMarkup),
					zap.Float64("reference_price", snap.ReferencePrice))
			}
		}
	}
}
