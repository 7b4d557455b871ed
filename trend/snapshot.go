package trend

import (
	"errors"
	"time"

	"xmb-trader-go/order"
)

// ErrNoSignal 表示趋势管线因数据不足或数值退化而无法给出方向。
// 它是调用方可分支的正常结果，而不是故障：Worker 收到后跳过建仓、
// 继续对账。绝不能用零值冒充。
var ErrNoSignal = errors.New("trend: no signal")

// Snapshot 一次完整的趋势计算结果。发布后不可变，整体替换。
type Snapshot struct {
	Profile        order.Profile
	ProfitMarkup   float64
	ReserveMarkup  float64
	ReferencePrice float64
	ComputedAt     time.Time
}
