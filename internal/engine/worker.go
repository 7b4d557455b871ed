package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
	"xmb-trader-go/metrics"
	"xmb-trader-go/order"
	"xmb-trader-go/pricing"
	"xmb-trader-go/sizer"
	"xmb-trader-go/trend"
)

// WorkerState 引擎状态
type WorkerState int

const (
	// StateIdle 空闲状态
	StateIdle WorkerState = iota
	// StateRunning 运行状态
	StateRunning
	// StatePaused 暂停状态
	StatePaused
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// TickOutcome 一轮 tick 的结果，用返回值而不是异常承载控制流。
type TickOutcome int

const (
	// TickCompleted 本轮对账与建单全部执行
	TickCompleted TickOutcome = iota
	// TickNoSignal 无趋势信号，只做了对账
	TickNoSignal
	// TickDegraded 某些订单的处理失败被边界吸收，其余订单照常
	TickDegraded
)

func (o TickOutcome) String() string {
	switch o {
	case TickCompleted:
		return "ok"
	case TickNoSignal:
		return "no_signal"
	case TickDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// SignalSource Worker 看到的信号入口：要么一份完整快照，要么 nil。
type SignalSource interface {
	Snapshot() *trend.Snapshot
}

// Config Worker 配置
type Config struct {
	Pair         market.Pair   // 交易对
	TickInterval time.Duration // tick 间隔

	MaxReserveOrdersUp   int // UP 方向存活储备单上限
	MaxReserveOrdersDown int // DOWN 方向存活储备单上限

	MinProfitMarkup       float64 // 低于该加成不值得建仓
	ReservePriceDeviation float64 // 挂单价偏离超过该比例则撤单重挂
	OrderPriceDeviation   float64 // 新储备单与既有同向订单的最小价差比例

	ConfirmRetryDelay time.Duration // 下单确认重试前的等待
}

// Components Worker 依赖组件
type Components struct {
	API    market.API
	Store  order.Store
	Signal SignalSource
	Sizer  sizer.Sizer
	Pricer *pricing.Calculator
	Logger *logger.Logger
}

// Worker 订单生命周期引擎：对账本地订单与交易所，按信号建仓、平仓。
// 一轮 tick 内严格串行，杜绝重复下单。
type Worker struct {
	config Config

	api    market.API
	store  order.Store
	signal SignalSource
	sizer  sizer.Sizer
	pricer *pricing.Calculator
	logger *logger.Logger

	state WorkerState
	mu    sync.RWMutex

	stopChan chan struct{}
	doneChan chan struct{}

	stats Statistics

	now   func() time.Time
	sleep func(time.Duration)
}

// Statistics Worker 统计信息
type Statistics struct {
	StartTime      time.Time
	TotalTicks     int64
	TotalCreated   int64
	TotalCanceled  int64
	TotalCompleted int64
	TotalErrors    int64
	LastTickTime   time.Time
	mu             sync.RWMutex
}

// New 创建 Worker
func New(cfg Config, components Components) (*Worker, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	return &Worker{
		config:   cfg,
		api:      components.API,
		store:    components.Store,
		signal:   components.Signal,
		sizer:    components.Sizer,
		pricer:   components.Pricer,
		logger:   components.Logger,
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Pair.Base == "" || cfg.Pair.Quote == "" {
		return fmt.Errorf("pair is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxReserveOrdersUp <= 0 {
		cfg.MaxReserveOrdersUp = 5
	}
	if cfg.MaxReserveOrdersDown <= 0 {
		cfg.MaxReserveOrdersDown = 5
	}
	if cfg.MinProfitMarkup <= 0 {
		cfg.MinProfitMarkup = 0.001
	}
	if cfg.ReservePriceDeviation <= 0 {
		cfg.ReservePriceDeviation = 0.001
	}
	if cfg.OrderPriceDeviation <= 0 {
		cfg.OrderPriceDeviation = 0.01
	}
	if cfg.ConfirmRetryDelay <= 0 {
		cfg.ConfirmRetryDelay = time.Second
	}
	return nil
}

func validateComponents(c Components) error {
	if c.API == nil {
		return fmt.Errorf("market api is required")
	}
	if c.Store == nil {
		return fmt.Errorf("order store is required")
	}
	if c.Signal == nil {
		return fmt.Errorf("signal source is required")
	}
	if c.Sizer == nil {
		return fmt.Errorf("sizer is required")
	}
	if c.Pricer == nil {
		return fmt.Errorf("pricer is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Start 启动 Worker
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle && w.state != StateStopped {
		w.mu.Unlock()
		return fmt.Errorf("worker already started (state: %s)", w.state)
	}
	if w.state == StateStopped {
		w.stopChan = make(chan struct{})
		w.doneChan = make(chan struct{})
	}
	w.state = StateRunning
	w.stats.StartTime = w.now()
	w.mu.Unlock()

	w.logger.Info("Worker starting",
		zap.String("pair", w.config.Pair.String()),
		zap.Duration("tick_interval", w.config.TickInterval))

	go w.run(ctx)

	return nil
}

// Stop 停止 Worker，等待当前 tick 跑完
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.state != StateRunning && w.state != StatePaused {
		w.mu.Unlock()
		return fmt.Errorf("worker not running (state: %s)", w.state)
	}
	w.mu.Unlock()

	w.logger.Info("Worker stopping...")

	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}

	select {
	case <-w.doneChan:
	case <-time.After(10 * time.Second):
		w.logger.Warn("Timeout waiting for worker to stop")
	}

	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()

	w.logger.Info("Worker stopped")
	return nil
}

// Pause 暂停建单与对账，循环保持运行
func (w *Worker) Pause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateRunning {
		return fmt.Errorf("worker not running (state: %s)", w.state)
	}
	w.state = StatePaused
	w.logger.Info("Worker paused")
	return nil
}

// Resume 恢复运行
func (w *Worker) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StatePaused {
		return fmt.Errorf("worker not paused (state: %s)", w.state)
	}
	w.state = StateRunning
	w.logger.Info("Worker resumed")
	return nil
}

// State 返回当前状态
func (w *Worker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// SetClock 注入时钟，回测时替换为模拟时间。
func (w *Worker) SetClock(now func() time.Time) { w.now = now }

// Stats 返回统计信息快照
func (w *Worker) Stats() Statistics {
	w.stats.mu.RLock()
	defer w.stats.mu.RUnlock()
	return Statistics{
		StartTime:      w.stats.StartTime,
		TotalTicks:     w.stats.TotalTicks,
		TotalCreated:   w.stats.TotalCreated,
		TotalCanceled:  w.stats.TotalCanceled,
		TotalCompleted: w.stats.TotalCompleted,
		TotalErrors:    w.stats.TotalErrors,
		LastTickTime:   w.stats.LastTickTime,
	}
}

// run 主事件循环。tick 内任何错误都不会终止循环。
func (w *Worker) run(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Context done, stopping worker")
			return
		case <-w.stopChan:
			w.logger.Info("Stop signal received")
			return
		case <-ticker.C:
			if w.State() == StatePaused {
				continue
			}
			outcome := w.Tick(ctx)
			metrics.IncrementTick(outcome.String())
			w.logger.LogTick(outcome.String(), nil)
		}
	}
}

// tickCache 一轮 tick 内至多拉取一次自有成交，供所有逐单检查复用。
type tickCache struct {
	api  market.API
	pair market.Pair

	fetched bool
	trades  []market.UserTrade
	err     error
}

func (c *tickCache) userTrades(ctx context.Context) ([]market.UserTrade, error) {
	if !c.fetched {
		c.trades, c.err = c.api.GetUserTrades(ctx, c.pair)
		c.fetched = true
	}
	return c.trades, c.err
}

// tradedQty 汇总某订单的实际成交量与成交均价。
func tradedQty(trades []market.UserTrade, orderID string) (qty, vwap float64) {
	var notional float64
	for _, t := range trades {
		if t.OrderID == orderID {
			qty += t.Qty
			notional += t.Price * t.Qty
		}
	}
	if qty > 0 {
		vwap = notional / qty
	}
	return qty, vwap
}

// Tick 执行一轮：对账 → 获利单补建 → 储备单建仓。
// 每个订单有独立的错误边界，单个订单失败不阻塞其它订单。
func (w *Worker) Tick(ctx context.Context) TickOutcome {
	start := w.now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	w.stats.mu.Lock()
	w.stats.TotalTicks++
	w.stats.LastTickTime = start
	w.stats.mu.Unlock()

	snap := w.signal.Snapshot()
	if snap != nil {
		metrics.UpdateSignalMetrics(string(snap.Profile), snap.ProfitMarkup, snap.ReferencePrice)
	} else {
		metrics.UpdateSignalMetrics("", 0, 0)
	}

	cache := &tickCache{api: w.api, pair: w.config.Pair}
	degraded := false

	if err := w.reconcile(ctx, cache, snap); err != nil {
		w.countError()
		w.logger.Error("Cannot reconcile open orders", zap.Error(err))
		degraded = true
	}

	// 无信号时退化为纯对账
	if snap == nil {
		if degraded {
			return TickDegraded
		}
		return TickNoSignal
	}

	if err := w.issueProfitOrders(ctx, cache, snap); err != nil {
		w.countError()
		w.logger.Error("Cannot issue profit orders", zap.Error(err))
		degraded = true
	}
	if err := w.issueReserveOrder(ctx, snap); err != nil {
		w.countError()
		w.logger.Error("Cannot issue reserve order", zap.Error(err))
		degraded = true
	}

	w.updateReserveGauges()

	if degraded {
		return TickDegraded
	}
	return TickCompleted
}

// reconcile 拉一次交易所挂单集合，逐个核对本地 OPEN 订单。
func (w *Worker) reconcile(ctx context.Context, cache *tickCache, snap *trend.Snapshot) error {
	stored, err := w.store.GetOpenOrders()
	if err != nil {
		return fmt.Errorf("load stored orders: %w", err)
	}
	var open []*order.Order
	for _, o := range stored {
		if o.Status == order.StatusOpen {
			open = append(open, o)
		}
	}
	if len(open) == 0 {
		return nil
	}

	exchangeOpen, err := w.api.GetOpenOrders(ctx, w.config.Pair)
	if err != nil {
		return fmt.Errorf("fetch exchange open orders: %w", err)
	}
	onExchange := make(map[string]bool, len(exchangeOpen))
	for _, o := range exchangeOpen {
		onExchange[o.ID] = true
	}

	for _, o := range open {
		if err := w.reconcileOrder(ctx, cache, onExchange, o, snap); err != nil {
			w.countError()
			w.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		}
	}
	return nil
}

func (w *Worker) reconcileOrder(ctx context.Context, cache *tickCache, onExchange map[string]bool, o *order.Order, snap *trend.Snapshot) error {
	if onExchange[o.ID] {
		// 仍然挂着的获利单不用管
		if o.Type != order.TypeReserve || snap == nil {
			return nil
		}
		return w.checkReserveOrder(ctx, cache, o, snap)
	}
	return w.handleVanishedOrder(ctx, cache, o)
}

// checkReserveOrder 对仍挂在交易所的储备单做价格漂移检查。
// 有部分成交的订单绝不撤：钱已经动了，只能守住原价。
func (w *Worker) checkReserveOrder(ctx context.Context, cache *tickCache, o *order.Order, snap *trend.Snapshot) error {
	trades, err := cache.userTrades(ctx)
	if err != nil {
		return fmt.Errorf("fetch user trades: %w", err)
	}
	if qty, _ := tradedQty(trades, o.ID); qty > 0 {
		w.logger.Debug("Order is partially filled, keeping", zap.String("order_id", o.ID))
		return nil
	}

	if o.Profile == snap.Profile {
		desired := w.pricer.ReservePrice(snap.ReferencePrice, snap.ReserveMarkup)
		if math.Abs(desired-o.Price) > o.Price*w.config.ReservePriceDeviation {
			w.logger.Debug("Reserve price has drifted",
				zap.String("order_id", o.ID),
				zap.Float64("order_price", o.Price),
				zap.Float64("desired_price", desired))
			return w.cancelOrder(ctx, o)
		}
		return nil
	}

	// 方向变了；只有新加成值得建仓才腾出资金
	if snap.ProfitMarkup < w.config.MinProfitMarkup {
		w.logger.Debug("Profile changed but markup too small, keeping",
			zap.String("order_id", o.ID))
		return nil
	}
	w.logger.Debug("Profile has changed",
		zap.String("order_id", o.ID),
		zap.String("order_profile", string(o.Profile)),
		zap.String("signal_profile", string(snap.Profile)))
	return w.cancelOrder(ctx, o)
}

// cancelOrder 先确认交易所撤单成功，再归档，两者不能背离。
func (w *Worker) cancelOrder(ctx context.Context, o *order.Order) error {
	if err := w.api.CancelOrder(ctx, o.ID); err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	if err := w.store.Archive(o.ID, order.StatusCanceled, w.now()); err != nil {
		return fmt.Errorf("archive canceled order %s: %w", o.ID, err)
	}
	w.stats.mu.Lock()
	w.stats.TotalCanceled++
	w.stats.mu.Unlock()
	metrics.IncrementOrdersCanceled(string(o.Profile))
	w.logger.LogOrder("canceled", o.ID, map[string]interface{}{"profile": string(o.Profile)})
	return nil
}

// handleVanishedOrder 订单从挂单集合消失，必须能在自有成交里找到，
// 否则视为异常，不做任何状态变更，留给下一轮。
func (w *Worker) handleVanishedOrder(ctx context.Context, cache *tickCache, o *order.Order) error {
	trades, err := cache.userTrades(ctx)
	if err != nil {
		return fmt.Errorf("fetch user trades: %w", err)
	}
	qty, _ := tradedQty(trades, o.ID)
	if qty == 0 {
		w.logger.Error("Order vanished without trades, leaving untouched",
			zap.String("order_id", o.ID))
		return nil
	}

	now := w.now()
	if o.Type == order.TypeProfit {
		// 获利单成交：连同垫资的储备单一起归档
		if err := w.store.Archive(o.ID, order.StatusCompleted, now); err != nil {
			return fmt.Errorf("archive profit order %s: %w", o.ID, err)
		}
		if base := o.BaseID(); base != "" {
			if err := w.store.Archive(base, order.StatusCompleted, now); err != nil {
				return fmt.Errorf("archive base order %s: %w", base, err)
			}
		}
		w.stats.mu.Lock()
		w.stats.TotalCompleted++
		w.stats.mu.Unlock()
		metrics.IncrementOrdersCompleted(string(o.Profile), string(order.TypeProfit))
		w.logger.LogOrder("completed", o.ID, map[string]interface{}{"profile": string(o.Profile)})
		return nil
	}

	// 储备单成交，等待获利腿
	if err := w.store.UpdateStatus(o.ID, order.StatusWaitForProfit, now); err != nil {
		return fmt.Errorf("mark order %s wait for profit: %w", o.ID, err)
	}
	w.logger.LogOrder("filled", o.ID, map[string]interface{}{"profile": string(o.Profile)})
	return nil
}

// issueProfitOrders 为每个等待获利腿的储备单补建获利单。
func (w *Worker) issueProfitOrders(ctx context.Context, cache *tickCache, snap *trend.Snapshot) error {
	stored, err := w.store.GetOpenOrders()
	if err != nil {
		return fmt.Errorf("load stored orders: %w", err)
	}

	// 已有活跃获利腿的储备单不再补
	hasChild := make(map[string]bool)
	for _, o := range stored {
		if o.Type == order.TypeProfit {
			hasChild[o.BaseID()] = true
		}
	}

	for _, o := range stored {
		if !order.NeedsProfitLeg(o.Status) || hasChild[o.ID] {
			continue
		}
		if err := w.issueProfitOrder(ctx, cache, o, snap); err != nil {
			w.countError()
			w.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		}
	}
	return nil
}

func (w *Worker) issueProfitOrder(ctx context.Context, cache *tickCache, base *order.Order, snap *trend.Snapshot) error {
	if base.Profile != snap.Profile {
		w.logger.Debug("Profile has changed, not creating profit order",
			zap.String("base_order_id", base.ID))
		return nil
	}

	// 用实际成交量与成交均价定价，而不是下单时的请求值
	basePrice, baseQty := base.Price, base.Quantity
	if trades, err := cache.userTrades(ctx); err == nil {
		if qty, vwap := tradedQty(trades, base.ID); qty > 0 {
			baseQty, basePrice = qty, vwap
		}
	}

	markup := snap.ProfitMarkup
	qty, err := w.pricer.ProfitQuantity(baseQty, base.Profile, markup)
	if err != nil {
		return err
	}
	price, err := w.pricer.ProfitPrice(qty, baseQty, basePrice, base.Profile, markup)
	if err != nil {
		return err
	}
	side, err := pricing.ProfitSide(base.Profile)
	if err != nil {
		return err
	}

	created, err := w.submitOrder(ctx, qty, price, side)
	if err != nil {
		return fmt.Errorf("submit profit order for %s: %w", base.ID, err)
	}
	now := w.now()
	if _, err := w.store.CreateOrder(created, base.Profile, order.TypeProfit, now, base, markup); err != nil {
		return fmt.Errorf("store profit order %s: %w", created.ID, err)
	}
	if err := w.store.UpdateStatus(base.ID, order.StatusProfitOrderCreated, now); err != nil {
		return fmt.Errorf("mark base order %s: %w", base.ID, err)
	}

	w.stats.mu.Lock()
	w.stats.TotalCreated++
	w.stats.mu.Unlock()
	metrics.IncrementOrdersCreated(string(base.Profile), string(order.TypeProfit))
	w.logger.LogOrder("profit_created", created.ID, map[string]interface{}{
		"base_order_id": base.ID,
		"price":         price,
		"quantity":      qty,
	})
	return nil
}

// issueReserveOrder 按当前信号方向尝试建一笔储备单。
func (w *Worker) issueReserveOrder(ctx context.Context, snap *trend.Snapshot) error {
	profile := snap.Profile

	if snap.ProfitMarkup < w.config.MinProfitMarkup {
		w.logger.Debug("Profit markup too small",
			zap.Float64("profit_markup", snap.ProfitMarkup),
			zap.Float64("min", w.config.MinProfitMarkup))
		return nil
	}

	stored, err := w.store.GetOpenOrders()
	if err != nil {
		return fmt.Errorf("load stored orders: %w", err)
	}
	if order.CountLiveReserve(stored, profile) >= w.maxReserveOrders(profile) {
		w.logger.Debug("Reserve order limit reached", zap.String("profile", string(profile)))
		return nil
	}

	price := w.pricer.ReservePrice(snap.ReferencePrice, snap.ReserveMarkup)

	// 与既有同向订单（或其垫资单）价格过近时不再锁资金
	for _, o := range stored {
		if o.Profile != profile {
			continue
		}
		existing := o.Price
		if o.BaseOrder != nil {
			existing = o.BaseOrder.Price
		}
		if math.Abs(existing-price) <= snap.ReferencePrice*w.config.OrderPriceDeviation {
			w.logger.Debug("Price too close to existing order",
				zap.String("order_id", o.ID),
				zap.Float64("existing", existing),
				zap.Float64("candidate", price))
			return nil
		}
	}

	size := w.sizer.Size(ctx, snap.ReferencePrice, profile)
	amount, err := w.pricer.ReserveAmount(size, profile)
	if err != nil {
		return err
	}
	side, err := pricing.ReserveSide(profile)
	if err != nil {
		return err
	}

	created, err := w.submitOrder(ctx, amount, price, side)
	if err != nil {
		return fmt.Errorf("submit reserve order: %w", err)
	}
	if _, err := w.store.CreateOrder(created, profile, order.TypeReserve, w.now(), nil, snap.ProfitMarkup); err != nil {
		return fmt.Errorf("store reserve order %s: %w", created.ID, err)
	}

	w.stats.mu.Lock()
	w.stats.TotalCreated++
	w.stats.mu.Unlock()
	metrics.IncrementOrdersCreated(string(profile), string(order.TypeReserve))
	w.logger.LogOrder("reserve_created", created.ID, map[string]interface{}{
		"profile":  string(profile),
		"price":    price,
		"quantity": amount,
	})
	return nil
}

func (w *Worker) maxReserveOrders(profile order.Profile) int {
	if profile == order.ProfileUp {
		return w.config.MaxReserveOrdersUp
	}
	return w.config.MaxReserveOrdersDown
}

// submitOrder 下单并确认。交易所返回的 id 必须能在挂单或自有成交里
// 找到，否则这笔订单按失败处理（只影响它自己，不影响本轮其余订单）。
func (w *Worker) submitOrder(ctx context.Context, qty, price float64, side order.Side) (*order.Order, error) {
	orderID, err := w.api.CreateOrder(ctx, w.config.Pair, qty, price, string(side))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return w.confirmOrder(ctx, orderID, qty, price, side)
}

// confirmOrder 处理读写滞后：挂单查不到就等一拍重查一次，
// 再查不到回落到自有成交（瞬间成交的情况）。
func (w *Worker) confirmOrder(ctx context.Context, orderID string, qty, price float64, side order.Side) (*order.Order, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			w.sleep(w.config.ConfirmRetryDelay)
		}
		open, err := w.api.GetOpenOrders(ctx, w.config.Pair)
		if err != nil {
			return nil, fmt.Errorf("confirm order %s: %w", orderID, err)
		}
		for _, o := range open {
			if o.ID == orderID {
				return &order.Order{
					ID:       o.ID,
					Side:     order.Side(o.Side),
					Price:    o.Price,
					Quantity: o.Quantity,
				}, nil
			}
		}
	}

	trades, err := w.api.GetUserTrades(ctx, w.config.Pair)
	if err != nil {
		return nil, fmt.Errorf("confirm order %s via trades: %w", orderID, err)
	}
	if filled, vwap := tradedQty(trades, orderID); filled > 0 {
		return &order.Order{
			ID:       orderID,
			Side:     side,
			Price:    vwap,
			Quantity: filled,
		}, nil
	}
	return nil, fmt.Errorf("order %s not found on exchange after creation", orderID)
}

func (w *Worker) updateReserveGauges() {
	stored, err := w.store.GetOpenOrders()
	if err != nil {
		return
	}
	metrics.LiveReserveOrders.WithLabelValues(string(order.ProfileUp)).
		Set(float64(order.CountLiveReserve(stored, order.ProfileUp)))
	metrics.LiveReserveOrders.WithLabelValues(string(order.ProfileDown)).
		Set(float64(order.CountLiveReserve(stored, order.ProfileDown)))
}

func (w *Worker) countError() {
	w.stats.mu.Lock()
	w.stats.TotalErrors++
	w.stats.mu.Unlock()
}
