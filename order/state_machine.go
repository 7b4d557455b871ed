package order

import "fmt"

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机。转换表是只读的，可被多个 goroutine 并发查询。
type StateMachine struct {
	transitions map[StateTransition]bool
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

// initializeTransitions 初始化所有合法的状态转换
func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// RESERVE 订单：挂单中 -> 已成交等待平仓 / 已撤销
		{StatusOpen, StatusWaitForProfit},
		{StatusOpen, StatusCanceled},

		// PROFIT 订单：挂单中 -> 已成交
		{StatusOpen, StatusCompleted},

		// 等待平仓的 RESERVE：已开 PROFIT 腿 / PROFIT 腿被撤
		{StatusWaitForProfit, StatusProfitOrderCreated},
		{StatusWaitForProfit, StatusProfitOrderCanceled},

		// PROFIT 腿终结时，RESERVE 同步归档
		{StatusProfitOrderCreated, StatusCompleted},
		{StatusProfitOrderCreated, StatusProfitOrderCanceled},

		// PROFIT 腿被撤后需要重开
		{StatusProfitOrderCanceled, StatusProfitOrderCreated},

		// 终态不能转换（COMPLETED, CANCELED）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	// 相同状态允许（幂等性）
	if from == to {
		return nil
	}

	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s (allowed: %v)", from, to, sm.AllowedTransitions(from))
	}

	return nil
}

// AllowedTransitions 返回当前状态所有合法的目标状态
func (sm *StateMachine) AllowedTransitions(current Status) []Status {
	allowed := make([]Status, 0)
	for transition := range sm.transitions {
		if transition.From == current {
			allowed = append(allowed, transition.To)
		}
	}
	return allowed
}

// IsTerminal 判断是否是终态。终态订单只存在于归档中，不再变更。
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}

// NeedsProfitLeg 判断 RESERVE 订单是否还缺一条在市的 PROFIT 腿。
func NeedsProfitLeg(status Status) bool {
	return status == StatusWaitForProfit || status == StatusProfitOrderCanceled
}
