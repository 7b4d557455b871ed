package pricing

import (
	"math"
	"testing"

	"xmb-trader-go/order"
)

const eps = 1e-9

func mustCalc(t *testing.T, cfg Config) *Calculator {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Fee: 0.6, DenomUp: DenomQuote, DenomDown: DenomBase}); err == nil {
		t.Fatal("expected fee range error")
	}
	if _, err := New(Config{Fee: 0.002, DenomUp: "BTC", DenomDown: DenomBase}); err == nil {
		t.Fatal("expected denomination error")
	}
}

func TestReservePriceSymmetric(t *testing.T) {
	c := mustCalc(t, Config{Fee: 0.002, DenomUp: DenomQuote, DenomDown: DenomBase})
	if got := c.ReservePrice(1000, 0); got != 1000 {
		t.Fatalf("reserve price with zero markup = %v, want 1000", got)
	}
	if got := c.ReservePrice(1000, 0.01); math.Abs(got-1010) > eps {
		t.Fatalf("reserve price = %v, want 1010", got)
	}
}

func TestReserveAmount(t *testing.T) {
	c := mustCalc(t, Config{Fee: 0.2, DenomUp: DenomQuote, DenomDown: DenomBase})
	up, err := c.ReserveAmount(4, order.ProfileUp)
	if err != nil || math.Abs(up-5) > eps {
		t.Fatalf("up amount = %v (%v), want 5", up, err)
	}
	down, err := c.ReserveAmount(4, order.ProfileDown)
	if err != nil || down != 4 {
		t.Fatalf("down amount = %v (%v), want 4", down, err)
	}
}

func TestSides(t *testing.T) {
	if s, _ := ReserveSide(order.ProfileUp); s != order.SideBuy {
		t.Fatalf("up reserve side = %s", s)
	}
	if s, _ := ProfitSide(order.ProfileUp); s != order.SideSell {
		t.Fatalf("up profit side = %s", s)
	}
	if s, _ := ReserveSide(order.ProfileDown); s != order.SideSell {
		t.Fatalf("down reserve side = %s", s)
	}
	if s, _ := ProfitSide(order.ProfileDown); s != order.SideBuy {
		t.Fatalf("down profit side = %s", s)
	}
	if _, err := ReserveSide(order.Profile("SIDEWAYS")); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

// 往返性质：任意 (price, quantity, fee, markup)，平仓腿扣费后至少实现 markup。
func TestProfitRoundTrip(t *testing.T) {
	fees := []float64{0, 0.001, 0.002, 0.01, 0.1, 0.49}
	markups := []float64{0, 0.0005, 0.002, 0.05, 0.3}
	prices := []float64{0.034, 1, 1234.56, 98765.4}
	quantities := []float64{0.001, 0.5, 10}

	for _, fee := range fees {
		for _, m := range markups {
			for _, p := range prices {
				for _, q := range quantities {
					checkUpQuote(t, fee, m, p, q)
					checkUpBase(t, fee, m, p, q)
					checkDownBase(t, fee, m, p, q)
					checkDownQuote(t, fee, m, p, q)
				}
			}
		}
	}
}

func checkUpQuote(t *testing.T, fee, m, basePrice, baseQty float64) {
	t.Helper()
	c := mustCalc(t, Config{Fee: fee, DenomUp: DenomQuote, DenomDown: DenomBase})
	qty, err := c.ProfitQuantity(baseQty, order.ProfileUp, m)
	if err != nil {
		t.Fatal(err)
	}
	price, err := c.ProfitPrice(qty, baseQty, basePrice, order.ProfileUp, m)
	if err != nil {
		t.Fatal(err)
	}
	cost := baseQty * basePrice
	proceeds := qty * price * (1 - fee)
	if proceeds < cost*(1+m)-eps*cost {
		t.Fatalf("up/quote: fee=%v m=%v proceeds %v < %v", fee, m, proceeds, cost*(1+m))
	}
}

func checkUpBase(t *testing.T, fee, m, basePrice, baseQty float64) {
	t.Helper()
	c := mustCalc(t, Config{Fee: fee, DenomUp: DenomBase, DenomDown: DenomBase})
	qty, err := c.ProfitQuantity(baseQty, order.ProfileUp, m)
	if err != nil {
		t.Fatal(err)
	}
	price, err := c.ProfitPrice(qty, baseQty, basePrice, order.ProfileUp, m)
	if err != nil {
		t.Fatal(err)
	}
	cost := baseQty * basePrice
	// 报价货币回本，利润留在基础货币
	proceeds := qty * price * (1 - fee)
	if proceeds < cost-eps*cost {
		t.Fatalf("up/base: fee=%v m=%v proceeds %v < cost %v", fee, m, proceeds, cost)
	}
	retained := baseQty*(1-fee) - qty
	total := proceeds + retained*price
	if total < cost*(1+m)-1e-6*cost {
		t.Fatalf("up/base: fee=%v m=%v total value %v < %v", fee, m, total, cost*(1+m))
	}
}

func checkDownBase(t *testing.T, fee, m, basePrice, baseQty float64) {
	t.Helper()
	c := mustCalc(t, Config{Fee: fee, DenomUp: DenomQuote, DenomDown: DenomBase})
	qty, err := c.ProfitQuantity(baseQty, order.ProfileDown, m)
	if err != nil {
		t.Fatal(err)
	}
	price, err := c.ProfitPrice(qty, baseQty, basePrice, order.ProfileDown, m)
	if err != nil {
		t.Fatal(err)
	}
	received := baseQty * basePrice * (1 - fee)
	spent := qty * price
	if spent > received+eps*received {
		t.Fatalf("down/base: fee=%v m=%v spends %v > received %v", fee, m, spent, received)
	}
	recovered := qty * (1 - fee)
	if recovered < baseQty*(1+m)-eps*baseQty {
		t.Fatalf("down/base: fee=%v m=%v recovered %v < %v", fee, m, recovered, baseQty*(1+m))
	}
}

func checkDownQuote(t *testing.T, fee, m, basePrice, baseQty float64) {
	t.Helper()
	c := mustCalc(t, Config{Fee: fee, DenomUp: DenomQuote, DenomDown: DenomQuote})
	qty, err := c.ProfitQuantity(baseQty, order.ProfileDown, m)
	if err != nil {
		t.Fatal(err)
	}
	price, err := c.ProfitPrice(qty, baseQty, basePrice, order.ProfileDown, m)
	if err != nil {
		t.Fatal(err)
	}
	received := baseQty * basePrice * (1 - fee)
	spent := qty * price
	// markup 份额的报价货币留作利润
	if spent > received*(1-m)+eps*received {
		t.Fatalf("down/quote: fee=%v m=%v spends %v > %v", fee, m, spent, received*(1-m))
	}
	recovered := qty * (1 - fee)
	if recovered < baseQty-eps*baseQty {
		t.Fatalf("down/quote: fee=%v m=%v recovered %v < %v", fee, m, recovered, baseQty)
	}
}

func TestProfitQuantityFloor(t *testing.T) {
	c := mustCalc(t, Config{Fee: 0.002, MinQty: 0.01, DenomUp: DenomQuote, DenomDown: DenomBase})
	qty, err := c.ProfitQuantity(0.0001, order.ProfileUp, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if qty != 0.01 {
		t.Fatalf("quantity %v not floored at minimum", qty)
	}
}
