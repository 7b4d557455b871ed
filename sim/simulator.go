package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xmb-trader-go/infrastructure/logger"
	"xmb-trader-go/market"
)

// Config 模拟器参数。
type Config struct {
	InitialBase  float64 // currency 1 初始余额
	InitialQuote float64 // currency 2 初始余额
	Fee          float64 // 成交手续费率
	LastDeals    int     // GetTrades 返回的最近成交条数
}

// Simulator 用历史成交带重放交易所。限价单在后续成交穿越其价格时
// 全量成交；余额记账区分可用与冻结两部分。实现 market.API，
// Worker 无法区分它与真实网关。
type Simulator struct {
	pair      market.Pair
	fee       float64
	lastDeals int
	log       *logger.Logger

	mu        sync.Mutex
	deals     []market.Trade
	index     int
	clock     time.Time
	balances  map[string]float64
	inOrders  map[string]float64
	initial   map[string]float64
	orders    map[string]market.OpenOrder
	userTrade []market.UserTrade
}

// NewSimulator 构建模拟器并预热：推进时钟直到有足够的历史成交
// 供信号与尺寸计算使用。deals 必须按时间升序。
func NewSimulator(pair market.Pair, deals []market.Trade, cfg Config, log *logger.Logger) (*Simulator, error) {
	if len(deals) == 0 {
		return nil, fmt.Errorf("sim: empty tape")
	}
	if cfg.LastDeals <= 0 {
		cfg.LastDeals = 100
	}
	s := &Simulator{
		pair:      pair,
		fee:       cfg.Fee,
		lastDeals: cfg.LastDeals,
		log:       log,
		deals:     deals,
		clock:     deals[0].Ts,
		balances:  map[string]float64{pair.Base: cfg.InitialBase, pair.Quote: cfg.InitialQuote},
		inOrders:  map[string]float64{pair.Base: 0, pair.Quote: 0},
		initial:   map[string]float64{pair.Base: cfg.InitialBase, pair.Quote: cfg.InitialQuote},
		orders:    make(map[string]market.OpenOrder),
	}
	// 预热到至少 lastDeals+1 条成交已经过去
	for s.index <= cfg.LastDeals && s.index < len(deals) {
		s.advanceLocked(s.clock.Add(time.Second))
	}
	return s, nil
}

// Clock 返回当前模拟时间。
func (s *Simulator) Clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// MaxTime 返回成交带末尾的时间，回测跑到这里为止。
func (s *Simulator) MaxTime() time.Time {
	return s.deals[len(s.deals)-1].Ts
}

// Advance 把模拟时间推进到 to，期间的成交逐条与挂单撮合。
func (s *Simulator) Advance(to time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(to)
}

func (s *Simulator) advanceLocked(to time.Time) {
	s.clock = to
	for s.index < len(s.deals) && s.deals[s.index].Ts.Before(to) {
		s.fillCrossed(s.deals[s.index])
		s.index++
	}
}

// fillCrossed 全量成交被该笔成交穿越的挂单：买单在成交价不高于
// 挂单价时成交，卖单在成交价高于挂单价时成交。
func (s *Simulator) fillCrossed(deal market.Trade) {
	for id, o := range s.orders {
		crossed := (o.Side == "buy" && deal.Price <= o.Price) ||
			(o.Side == "sell" && deal.Price > o.Price)
		if !crossed {
			continue
		}
		s.completeOrder(o)
		delete(s.orders, id)
	}
}

func (s *Simulator) completeOrder(o market.OpenOrder) {
	switch o.Side {
	case "buy":
		s.balances[s.pair.Base] += o.Quantity * (1 - s.fee)
		s.inOrders[s.pair.Quote] -= o.Quantity * o.Price
	case "sell":
		s.balances[s.pair.Quote] += o.Quantity * o.Price * (1 - s.fee)
		s.inOrders[s.pair.Base] -= o.Quantity
	}
	s.userTrade = append(s.userTrade, market.UserTrade{
		OrderID: o.ID,
		TradeID: int64(len(s.userTrade) + 1),
		Side:    o.Side,
		Price:   o.Price,
		Qty:     o.Quantity,
		Ts:      s.clock,
	})
	if s.log != nil {
		s.log.Info("Simulated fill",
			zap.String("order_id", o.ID),
			zap.String("side", o.Side),
			zap.Float64("price", o.Price),
			zap.Float64("quantity", o.Quantity),
			zap.Float64(s.pair.Base, s.balances[s.pair.Base]),
			zap.Float64(s.pair.Quote, s.balances[s.pair.Quote]))
	}
}

func (s *Simulator) GetOpenOrders(ctx context.Context, pair market.Pair) ([]market.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.OpenOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *Simulator) GetBalances(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out, nil
}

func (s *Simulator) CreateOrder(ctx context.Context, pair market.Pair, quantity, price float64, side string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch side {
	case "buy":
		amount := quantity * price
		if s.balances[s.pair.Quote] < amount {
			return "", fmt.Errorf("sim: cannot create order: too few %s", s.pair.Quote)
		}
		s.balances[s.pair.Quote] -= amount
		s.inOrders[s.pair.Quote] += amount
	case "sell":
		if s.balances[s.pair.Base] < quantity {
			return "", fmt.Errorf("sim: cannot create order: too few %s", s.pair.Base)
		}
		s.balances[s.pair.Base] -= quantity
		s.inOrders[s.pair.Base] += quantity
	default:
		return "", fmt.Errorf("sim: unknown side %q", side)
	}
	id := uuid.NewString()
	s.orders[id] = market.OpenOrder{
		ID:       id,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Created:  s.clock,
	}
	return id, nil
}

func (s *Simulator) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("sim: unknown order %s", orderID)
	}
	switch o.Side {
	case "buy":
		amount := o.Quantity * o.Price
		s.balances[s.pair.Quote] += amount
		s.inOrders[s.pair.Quote] -= amount
	case "sell":
		s.balances[s.pair.Base] += o.Quantity
		s.inOrders[s.pair.Base] -= o.Quantity
	}
	delete(s.orders, orderID)
	return nil
}

// IsPartiallyFilled 模拟器的成交总是全量的。
func (s *Simulator) IsPartiallyFilled(ctx context.Context, orderID string) (bool, error) {
	return false, nil
}

func (s *Simulator) GetTrades(ctx context.Context, pair market.Pair) ([]market.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo := s.index - s.lastDeals
	if lo < 0 {
		lo = 0
	}
	out := make([]market.Trade, s.index-lo)
	copy(out, s.deals[lo:s.index])
	return out, nil
}

func (s *Simulator) GetUserTrades(ctx context.Context, pair market.Pair) ([]market.UserTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.UserTrade, len(s.userTrade))
	copy(out, s.userTrade)
	return out, nil
}

// BalancesWithOrders 返回把冻结部分加回后的余额。
func (s *Simulator) BalancesWithOrders() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]float64{
		s.pair.Base:  s.balances[s.pair.Base] + s.inOrders[s.pair.Base],
		s.pair.Quote: s.balances[s.pair.Quote] + s.inOrders[s.pair.Quote],
	}
}

// Profit 返回相对初始余额的盈亏（冻结部分计入）。
func (s *Simulator) Profit() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]float64{
		s.pair.Base:  s.balances[s.pair.Base] + s.inOrders[s.pair.Base] - s.initial[s.pair.Base],
		s.pair.Quote: s.balances[s.pair.Quote] + s.inOrders[s.pair.Quote] - s.initial[s.pair.Quote],
	}
}
