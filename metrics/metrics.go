// Package metrics provides Prometheus metrics for the trading daemon
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal Worker tick 计数，按结果分类
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmb_ticks_total",
		Help: "Worker ticks by outcome",
	}, []string{"outcome"})

	// OrdersCreated 已提交并确认的订单数
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmb_orders_created_total",
		Help: "Orders created by profile and type",
	}, []string{"profile", "type"})

	// OrdersCanceled 已撤销归档的订单数
	OrdersCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmb_orders_canceled_total",
		Help: "Orders canceled by profile",
	}, []string{"profile"})

	// OrdersCompleted 已完成归档的订单数
	OrdersCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmb_orders_completed_total",
		Help: "Orders completed by profile and type",
	}, []string{"profile", "type"})

	// SignalProfile 当前信号方向：1=UP，-1=DOWN，0=无信号
	SignalProfile = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xmb_signal_profile",
		Help: "Current trend profile: 1 up, -1 down, 0 none",
	})

	// SignalProfitMarkup 当前信号的获利加成
	SignalProfitMarkup = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xmb_signal_profit_markup",
		Help: "Profit markup of the current trend snapshot",
	})

	// ReferencePrice 当前参考价
	ReferencePrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xmb_reference_price",
		Help: "Reference price of the current trend snapshot",
	})

	// LiveReserveOrders 各方向存活的储备单数量
	LiveReserveOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xmb_live_reserve_orders",
		Help: "Live reserve orders by profile",
	}, []string{"profile"})

	// TickDuration 单轮 tick 耗时
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xmb_tick_duration_seconds",
		Help:    "Duration of one worker tick",
		Buckets: prometheus.DefBuckets,
	})
)

// UpdateSignalMetrics 刷新信号类指标
func UpdateSignalMetrics(profile string, profitMarkup, referencePrice float64) {
	switch profile {
	case "UP":
		SignalProfile.Set(1)
	case "DOWN":
		SignalProfile.Set(-1)
	default:
		SignalProfile.Set(0)
	}
	SignalProfitMarkup.Set(profitMarkup)
	ReferencePrice.Set(referencePrice)
}

// IncrementTick 记录一轮 tick 的结果
func IncrementTick(outcome string) {
	TicksTotal.WithLabelValues(outcome).Inc()
}

// IncrementOrdersCreated 记录一笔确认成功的下单
func IncrementOrdersCreated(profile, orderType string) {
	OrdersCreated.WithLabelValues(profile, orderType).Inc()
}

// IncrementOrdersCanceled 记录一笔撤单归档
func IncrementOrdersCanceled(profile string) {
	OrdersCanceled.WithLabelValues(profile).Inc()
}

// IncrementOrdersCompleted 记录一笔完成归档
func IncrementOrdersCompleted(profile, orderType string) {
	OrdersCompleted.WithLabelValues(profile, orderType).Inc()
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
