package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdateSignalMetrics(t *testing.T) {
	SignalProfile.Set(0)
	SignalProfitMarkup.Set(0)
	ReferencePrice.Set(0)

	UpdateSignalMetrics("UP", 0.012, 1350)

	if testutil.ToFloat64(SignalProfile) != 1 {
		t.Errorf("Expected SignalProfile to be 1, got %f", testutil.ToFloat64(SignalProfile))
	}
	if testutil.ToFloat64(SignalProfitMarkup) != 0.012 {
		t.Errorf("Expected SignalProfitMarkup to be 0.012, got %f", testutil.ToFloat64(SignalProfitMarkup))
	}
	if testutil.ToFloat64(ReferencePrice) != 1350 {
		t.Errorf("Expected ReferencePrice to be 1350, got %f", testutil.ToFloat64(ReferencePrice))
	}

	UpdateSignalMetrics("DOWN", 0.002, 1340)
	if testutil.ToFloat64(SignalProfile) != -1 {
		t.Errorf("Expected SignalProfile to be -1, got %f", testutil.ToFloat64(SignalProfile))
	}

	UpdateSignalMetrics("", 0, 0)
	if testutil.ToFloat64(SignalProfile) != 0 {
		t.Errorf("Expected SignalProfile to be 0, got %f", testutil.ToFloat64(SignalProfile))
	}
}

func TestIncrementFunctions(t *testing.T) {
	TicksTotal.Reset()
	OrdersCreated.Reset()
	OrdersCanceled.Reset()
	OrdersCompleted.Reset()

	IncrementTick("ok")
	IncrementTick("ok")
	IncrementTick("no_signal")
	IncrementOrdersCreated("UP", "RESERVE")
	IncrementOrdersCanceled("DOWN")
	IncrementOrdersCompleted("UP", "PROFIT")

	if got := testutil.ToFloat64(TicksTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected TicksTotal[ok] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(TicksTotal.WithLabelValues("no_signal")); got != 1 {
		t.Errorf("Expected TicksTotal[no_signal] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(OrdersCreated.WithLabelValues("UP", "RESERVE")); got != 1 {
		t.Errorf("Expected OrdersCreated[UP,RESERVE] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(OrdersCanceled.WithLabelValues("DOWN")); got != 1 {
		t.Errorf("Expected OrdersCanceled[DOWN] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(OrdersCompleted.WithLabelValues("UP", "PROFIT")); got != 1 {
		t.Errorf("Expected OrdersCompleted[UP,PROFIT] to be 1, got %f", got)
	}
}
