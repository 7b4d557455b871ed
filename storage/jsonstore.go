// Package storage 提供订单仓库的两种持久化实现：
// 单文件 JSON（轻量部署）与 SQLite（带统计查询）。
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xmb-trader-go/order"
)

// JSONStore 把 live 订单整体存在 orders.json，归档订单按
// order_id 一单一文件追加到 archive/ 目录，写入后不再改动。
type JSONStore struct {
	mu     sync.Mutex
	dir    string
	orders map[string]*order.Order
	sm     *order.StateMachine
}

// NewJSONStore 打开（或初始化）dir 下的订单仓库并载入 live 集合。
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &JSONStore{dir: dir, orders: make(map[string]*order.Order), sm: order.NewStateMachine()}

	data, err := os.ReadFile(s.liveFile())
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	if err := json.Unmarshal(data, &s.orders); err != nil {
		return nil, fmt.Errorf("parse orders file: %w", err)
	}
	return s, nil
}

func (s *JSONStore) liveFile() string {
	return filepath.Join(s.dir, "orders.json")
}

func (s *JSONStore) archiveFile(orderID string) string {
	return filepath.Join(s.dir, "archive", orderID+".json")
}

func (s *JSONStore) GetOpenOrders() ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *JSONStore) CreateOrder(o *order.Order, profile order.Profile, typ order.Type, createdAt time.Time, baseOrder *order.Order, profitMarkup float64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return nil, fmt.Errorf("order %s already stored", o.ID)
	}
	stored := *o
	stored.Profile = profile
	stored.Type = typ
	stored.Status = order.StatusOpen
	stored.Created = createdAt
	stored.BaseOrder = baseOrder
	stored.ProfitMarkup = profitMarkup
	s.orders[stored.ID] = &stored
	if err := s.saveLive(); err != nil {
		delete(s.orders, stored.ID)
		return nil, err
	}
	return &stored, nil
}

func (s *JSONStore) UpdateStatus(orderID string, status order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	if err := s.sm.ValidateTransition(o.Status, status); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	o.Status = status
	if status == order.StatusWaitForProfit {
		t := at
		o.Completed = &t
	}
	return s.saveLive()
}

func (s *JSONStore) Archive(orderID string, status order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	if !order.IsTerminal(status) {
		return fmt.Errorf("order %s: archive status %s is not terminal", orderID, status)
	}
	if err := s.sm.ValidateTransition(o.Status, status); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	archived := *o
	archived.Status = status
	if status == order.StatusCanceled || (status == order.StatusCompleted && o.Type == order.TypeProfit) {
		t := at
		archived.Completed = &t
	}
	if err := writeJSON(s.archiveFile(orderID), &archived); err != nil {
		return fmt.Errorf("write archive order %s: %w", orderID, err)
	}
	delete(s.orders, orderID)
	return s.saveLive()
}

func (s *JSONStore) GetStats(start, end time.Time) (map[order.Profile]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(s.dir, "archive"))
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	stats := make(map[order.Profile]float64)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, "archive", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read archive order: %w", err)
		}
		var o order.Order
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("parse archive order %s: %w", e.Name(), err)
		}
		if o.Type != order.TypeProfit || o.Status != order.StatusCompleted {
			continue
		}
		if !inRange(o.Completed, start, end) {
			continue
		}
		stats[o.Profile] += o.ProfitMarkup
	}
	return stats, nil
}

func inRange(completed *time.Time, start, end time.Time) bool {
	if completed == nil {
		return false
	}
	if !start.IsZero() && completed.Before(start) {
		return false
	}
	if !end.IsZero() && !completed.Before(end) {
		return false
	}
	return true
}

func (s *JSONStore) saveLive() error {
	if err := writeJSON(s.liveFile(), s.orders); err != nil {
		return fmt.Errorf("write orders file: %w", err)
	}
	return nil
}

// writeJSON 先写临时文件再改名，避免崩溃留下半个文件。
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
