package market

import "time"

// Trade represents a normalized public trade tick.
type Trade struct {
	ID    int64     `json:"trade_id"`
	Price float64   `json:"price"`
	Qty   float64   `json:"quantity"`
	Ts    time.Time `json:"date"`
}

// UserTrade 账户自身的成交记录，用于对账（订单从盘口消失后必须能在此找到）。
type UserTrade struct {
	OrderID string    `json:"order_id"`
	TradeID int64     `json:"trade_id"`
	Side    string    `json:"type"`
	Price   float64   `json:"price"`
	Qty     float64   `json:"quantity"`
	Ts      time.Time `json:"date"`
}

// OpenOrder is the exchange's view of a resting order.
type OpenOrder struct {
	ID       string    `json:"order_id"`
	Side     string    `json:"type"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Created  time.Time `json:"created"`
}
