package order

import "time"

// Profile is the directional thesis an order serves.
type Profile string

const (
	ProfileUp   Profile = "UP"
	ProfileDown Profile = "DOWN"
)

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	return p == ProfileUp || p == ProfileDown
}

// Type distinguishes the position-opening leg from the closing leg.
type Type string

const (
	TypeReserve Type = "RESERVE"
	TypeProfit  Type = "PROFIT"
)

// Status represents order lifecycle.
type Status string

const (
	StatusOpen                Status = "OPEN"
	StatusWaitForProfit       Status = "WAIT_FOR_PROFIT"
	StatusProfitOrderCreated  Status = "PROFIT_ORDER_CREATED"
	StatusProfitOrderCanceled Status = "PROFIT_ORDER_CANCELED"
	StatusCompleted           Status = "COMPLETED"
	StatusCanceled            Status = "CANCELED"
)

// Side is the exchange-visible direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回另一侧方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order 本地订单记录。order_id 由交易所分配；base_order 仅 PROFIT
// 订单持有，指向为它垫资的 RESERVE 订单（只读反向引用）。
type Order struct {
	ID           string     `json:"order_id"`
	Profile      Profile    `json:"profile"`
	Type         Type       `json:"order_type"`
	Status       Status     `json:"status"`
	Side         Side       `json:"side"`
	Price        float64    `json:"price"`
	Quantity     float64    `json:"quantity"`
	Created      time.Time  `json:"created"`
	Completed    *time.Time `json:"completed,omitempty"`
	BaseOrder    *Order     `json:"base_order,omitempty"`
	ProfitMarkup float64    `json:"profit_markup"`
}

// BaseID returns the funding reserve order's id, or "" for reserve orders.
func (o *Order) BaseID() string {
	if o.BaseOrder == nil {
		return ""
	}
	return o.BaseOrder.ID
}
