package order

import "testing"

func TestStateMachineLegalPath(t *testing.T) {
	sm := NewStateMachine()

	// RESERVE 订单的完整生命周期
	path := []Status{StatusOpen, StatusWaitForProfit, StatusProfitOrderCreated, StatusCompleted}
	for i := 1; i < len(path); i++ {
		if err := sm.ValidateTransition(path[i-1], path[i]); err != nil {
			t.Fatalf("transition %s -> %s: %v", path[i-1], path[i], err)
		}
	}
}

func TestStateMachineTerminalIsFrozen(t *testing.T) {
	sm := NewStateMachine()
	for _, terminal := range []Status{StatusCompleted, StatusCanceled} {
		for _, to := range []Status{StatusOpen, StatusWaitForProfit, StatusProfitOrderCreated} {
			if err := sm.ValidateTransition(terminal, to); err == nil {
				t.Errorf("expected %s -> %s to be illegal", terminal, to)
			}
		}
	}
}

func TestStateMachineIdempotentSame(t *testing.T) {
	sm := NewStateMachine()
	if err := sm.ValidateTransition(StatusOpen, StatusOpen); err != nil {
		t.Fatalf("same-state transition should be allowed: %v", err)
	}
}

func TestStateMachineRejectsSkips(t *testing.T) {
	sm := NewStateMachine()
	// OPEN 不能直接跳到 PROFIT_ORDER_CREATED
	if err := sm.ValidateTransition(StatusOpen, StatusProfitOrderCreated); err == nil {
		t.Fatal("expected OPEN -> PROFIT_ORDER_CREATED to be illegal")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusCanceled) {
		t.Fatal("COMPLETED/CANCELED must be terminal")
	}
	if IsTerminal(StatusOpen) || IsTerminal(StatusWaitForProfit) {
		t.Fatal("live statuses must not be terminal")
	}
}

func TestNeedsProfitLeg(t *testing.T) {
	if !NeedsProfitLeg(StatusWaitForProfit) || !NeedsProfitLeg(StatusProfitOrderCanceled) {
		t.Fatal("WAIT_FOR_PROFIT and PROFIT_ORDER_CANCELED need a profit leg")
	}
	if NeedsProfitLeg(StatusProfitOrderCreated) {
		t.Fatal("PROFIT_ORDER_CREATED already has a live leg")
	}
}

func TestCountLiveReserve(t *testing.T) {
	orders := []*Order{
		{ID: "1", Type: TypeReserve, Profile: ProfileUp},
		{ID: "2", Type: TypeReserve, Profile: ProfileUp, Status: StatusWaitForProfit},
		{ID: "3", Type: TypeReserve, Profile: ProfileDown},
		{ID: "4", Type: TypeProfit, Profile: ProfileUp},
	}
	if got := CountLiveReserve(orders, ProfileUp); got != 2 {
		t.Fatalf("up reserve count = %d, want 2", got)
	}
	if got := CountLiveReserve(orders, ProfileDown); got != 1 {
		t.Fatalf("down reserve count = %d, want 1", got)
	}
}
