package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"xmb-trader-go/config"
	"xmb-trader-go/order"
	"xmb-trader-go/storage"
)

// 利润报表：汇总归档里已完成 PROFIT 订单的累计 markup。
// 用法：
//
//	go run ./cmd/report -config configs/config.yaml -since 2026-08-01T00:00:00Z
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	sinceStr := flag.String("since", "", "仅统计此时间之后的归档 (RFC3339)")
	untilStr := flag.String("until", "", "仅统计此时间之前的归档 (RFC3339)")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	since, err := parseWhen(*sinceStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析 since 参数失败: %v\n", err)
		os.Exit(1)
	}
	until, err := parseWhen(*untilStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析 until 参数失败: %v\n", err)
		os.Exit(1)
	}

	store, closeFn, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开订单存储失败: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	stats, err := store.GetStats(since, until)
	if err != nil {
		fmt.Fprintf(os.Stderr, "统计失败: %v\n", err)
		os.Exit(1)
	}

	open, err := store.GetOpenOrders()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取未结订单失败: %v\n", err)
		os.Exit(1)
	}
	liveReserve := map[order.Profile]int{
		order.ProfileUp:   order.CountLiveReserve(open, order.ProfileUp),
		order.ProfileDown: order.CountLiveReserve(open, order.ProfileDown),
	}

	fmt.Printf("存储: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Backend)
	if !since.IsZero() {
		fmt.Printf("起始时间: %s\n", since.Format(time.RFC3339))
	}
	if !until.IsZero() {
		fmt.Printf("截止时间: %s\n", until.Format(time.RFC3339))
	}
	fmt.Printf("UP   累计 markup: %.6f (在场储备单 %d)\n", stats[order.ProfileUp], liveReserve[order.ProfileUp])
	fmt.Printf("DOWN 累计 markup: %.6f (在场储备单 %d)\n", stats[order.ProfileDown], liveReserve[order.ProfileDown])
	fmt.Printf("合计: %.6f\n", stats[order.ProfileUp]+stats[order.ProfileDown])
}

func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func openStore(cfg config.Config) (order.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		js, err := storage.NewJSONStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return js, func() {}, nil
	}
}
