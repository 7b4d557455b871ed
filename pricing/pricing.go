// Package pricing holds the stateless price/quantity formulas for both
// order legs. Everything here is pure: no clocks, no I/O, no market state.
package pricing

import (
	"errors"
	"fmt"

	"xmb-trader-go/order"
)

// Denomination selects which asset realizes the markup of a profit leg.
// The choice moves the exchange fee between the two sides of the formula.
type Denomination string

const (
	DenomBase  Denomination = "base"  // markup kept in currency 1
	DenomQuote Denomination = "quote" // markup kept in currency 2
)

func (d Denomination) Valid() bool {
	return d == DenomBase || d == DenomQuote
}

// Config 定价参数。Fee 与 markup 均为小数（0.002 = 0.2%）。
type Config struct {
	Fee       float64
	MinQty    float64 // 交易所允许的最小下单量
	DenomUp   Denomination
	DenomDown Denomination
}

// Calculator applies the leg formulas for a fixed fee/denomination setup.
type Calculator struct {
	cfg Config
}

var errBadProfile = errors.New("pricing: unrecognized profile")

func New(cfg Config) (*Calculator, error) {
	if cfg.Fee < 0 || cfg.Fee >= 0.5 {
		return nil, fmt.Errorf("pricing: fee %v out of range [0, 0.5)", cfg.Fee)
	}
	if !cfg.DenomUp.Valid() {
		return nil, fmt.Errorf("pricing: profit denomination %q not supported", cfg.DenomUp)
	}
	if !cfg.DenomDown.Valid() {
		return nil, fmt.Errorf("pricing: profit denomination %q not supported", cfg.DenomDown)
	}
	return &Calculator{cfg: cfg}, nil
}

// ReservePrice anchors a reserve order at the reference price, optionally
// offset by the advisor's reserve markup. The formula is symmetric for both
// profiles: direction is carried by the order side, not the price.
func (c *Calculator) ReservePrice(refPrice, reserveMarkup float64) float64 {
	return refPrice * (1 + reserveMarkup)
}

// ReserveAmount 计算建仓数量。UP 买入时手续费从基础货币扣除，
// 需要多买一点才能实际持有目标数量；DOWN 卖出不受影响。
func (c *Calculator) ReserveAmount(size float64, profile order.Profile) (float64, error) {
	switch profile {
	case order.ProfileUp:
		return size / (1 - c.cfg.Fee), nil
	case order.ProfileDown:
		return size, nil
	default:
		return 0, errBadProfile
	}
}

// ReserveSide returns the exchange side of a reserve order: UP buys low,
// DOWN sells high.
func ReserveSide(profile order.Profile) (order.Side, error) {
	switch profile {
	case order.ProfileUp:
		return order.SideBuy, nil
	case order.ProfileDown:
		return order.SideSell, nil
	default:
		return "", errBadProfile
	}
}

// ProfitSide is always the opposite of the reserve side.
func ProfitSide(profile order.Profile) (order.Side, error) {
	side, err := ReserveSide(profile)
	if err != nil {
		return "", err
	}
	return side.Opposite(), nil
}

// ProfitQuantity derives the closing-leg quantity from the base order's
// actual filled quantity. Floored at the minimum tradeable size.
func (c *Calculator) ProfitQuantity(baseQty float64, profile order.Profile, markup float64) (float64, error) {
	fee := c.cfg.Fee
	var qty float64
	switch profile {
	case order.ProfileUp:
		// 买入后实际到手 baseQty*(1-fee)
		switch c.cfg.DenomUp {
		case DenomBase:
			// 留下 markup 份额的基础货币作为利润，其余卖出
			qty = baseQty * (1 - fee) * (1 - markup)
		case DenomQuote:
			qty = baseQty * (1 - fee)
		}
	case order.ProfileDown:
		switch c.cfg.DenomDown {
		case DenomBase:
			// 买回比卖出更多的基础货币；手续费再次从买入量中扣除
			qty = baseQty * (1 + markup) / (1 - fee)
		case DenomQuote:
			qty = baseQty / (1 - fee)
		}
	default:
		return 0, errBadProfile
	}
	if qty < c.cfg.MinQty {
		qty = c.cfg.MinQty
	}
	return qty, nil
}

// ProfitPrice derives the closing-leg price from the base order's actual
// fill, such that after both legs' fees the configured markup is realized
// in the chosen denomination.
func (c *Calculator) ProfitPrice(qty, baseQty, basePrice float64, profile order.Profile, markup float64) (float64, error) {
	fee := c.cfg.Fee
	switch profile {
	case order.ProfileUp:
		switch c.cfg.DenomUp {
		case DenomBase:
			// 报价货币只需回本；利润已留在基础货币里
			return baseQty * basePrice / (qty * (1 - fee)), nil
		case DenomQuote:
			return baseQty * basePrice * (1 + markup) / (qty * (1 - fee)), nil
		}
	case order.ProfileDown:
		// 卖出 baseQty 实际收到 baseQty*basePrice*(1-fee) 报价货币
		switch c.cfg.DenomDown {
		case DenomBase:
			return baseQty * basePrice * (1 - fee) / qty, nil
		case DenomQuote:
			return baseQty * basePrice * (1 - fee) * (1 - markup) / qty, nil
		}
	}
	return 0, errBadProfile
}
