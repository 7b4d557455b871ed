package order

import (
	"errors"
	"time"
)

var ErrUnknownOrder = errors.New("unknown order")

// Store 持久化订单仓库。live 集合只保存未终结订单；归档一经写入不可变。
// 约定单写者（Worker），实现内部仍加锁以便辅助读路径（报表）安全。
type Store interface {
	// GetOpenOrders 返回 live 集合中的全部订单（不含归档）。
	GetOpenOrders() ([]*Order, error)

	// CreateOrder 以 OPEN 状态登记一个交易所已确认的订单。
	// baseOrder 仅 PROFIT 订单传入。
	CreateOrder(o *Order, profile Profile, typ Type, createdAt time.Time, baseOrder *Order, profitMarkup float64) (*Order, error)

	// UpdateStatus 更新 live 订单状态；转入 WAIT_FOR_PROFIT 时记录成交时间。
	UpdateStatus(orderID string, status Status, at time.Time) error

	// Archive 以终态把订单从 live 集合移入归档，之后不再变更。
	Archive(orderID string, status Status, at time.Time) error

	// GetStats 统计 [start, end) 内归档的已完成 PROFIT 订单的累计 markup，按 profile 分组。
	GetStats(start, end time.Time) (map[Profile]float64, error)
}

// CountLiveReserve 统计某 profile 下尚未终结的 RESERVE 订单数量。
// 建仓上限只在创建时刻以该计数为准。
func CountLiveReserve(orders []*Order, profile Profile) int {
	n := 0
	for _, o := range orders {
		if o.Type == TypeReserve && o.Profile == profile {
			n++
		}
	}
	return n
}
