package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"xmb-trader-go/order"
)

// SQLiteStore 订单仓库的 SQLite 实现。live 与归档分表，
// 归档行只插入不更新；统计直接在归档表上聚合。
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
	sm *order.StateMachine
}

// OpenSQLite 打开（必要时建表）path 指向的订单库。
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &SQLiteStore{db: db, sm: order.NewStateMachine()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

const orderColumns = `order_id, profile, order_type, status, side, price, quantity, created, completed, base_order, profit_markup`

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			quantity REAL NOT NULL,
			created INTEGER NOT NULL,
			completed INTEGER NULL,
			base_order TEXT NULL,
			profit_markup REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS archive_orders (
			order_id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			quantity REAL NOT NULL,
			created INTEGER NOT NULL,
			completed INTEGER NULL,
			base_order TEXT NULL,
			profit_markup REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archive_stats
			ON archive_orders(order_type, status, completed)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOpenOrders() ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT ` + orderColumns + ` FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	baseIDs := make(map[*order.Order]string)
	for rows.Next() {
		o, baseID, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if baseID != "" {
			baseIDs[o] = baseID
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// base_order 多半已归档，live 集合查不到时回落到归档表
	live := make(map[string]*order.Order, len(out))
	for _, o := range out {
		live[o.ID] = o
	}
	for o, baseID := range baseIDs {
		if base, ok := live[baseID]; ok {
			o.BaseOrder = base
			continue
		}
		base, err := s.lookupArchived(baseID)
		if err != nil {
			return nil, err
		}
		o.BaseOrder = base
	}
	return out, nil
}

func (s *SQLiteStore) lookupArchived(orderID string) (*order.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderColumns+` FROM archive_orders WHERE order_id = ?`, orderID)
	o, _, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: base order %s", order.ErrUnknownOrder, orderID)
	}
	return o, err
}

func (s *SQLiteStore) CreateOrder(o *order.Order, profile order.Profile, typ order.Type, createdAt time.Time, baseOrder *order.Order, profitMarkup float64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *o
	stored.Profile = profile
	stored.Type = typ
	stored.Status = order.StatusOpen
	stored.Created = createdAt
	stored.BaseOrder = baseOrder
	stored.ProfitMarkup = profitMarkup

	var baseID sql.NullString
	if baseOrder != nil {
		baseID = sql.NullString{String: baseOrder.ID, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		stored.ID, string(stored.Profile), string(stored.Type), string(stored.Status), string(stored.Side),
		stored.Price, stored.Quantity, createdAt.Unix(), baseID, profitMarkup)
	if err != nil {
		return nil, fmt.Errorf("insert order %s: %w", stored.ID, err)
	}
	return &stored, nil
}

func (s *SQLiteStore) UpdateStatus(orderID string, status order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current string
	err := s.db.QueryRow(`SELECT status FROM orders WHERE order_id = ?`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	if err != nil {
		return fmt.Errorf("read order %s status: %w", orderID, err)
	}
	if err := s.sm.ValidateTransition(order.Status(current), status); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	var res sql.Result
	if status == order.StatusWaitForProfit {
		res, err = s.db.Exec(`UPDATE orders SET status = ?, completed = ? WHERE order_id = ?`,
			string(status), at.Unix(), orderID)
	} else {
		res, err = s.db.Exec(`UPDATE orders SET status = ? WHERE order_id = ?`, string(status), orderID)
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	return checkAffected(res, orderID)
}

func (s *SQLiteStore) Archive(orderID string, status order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, orderID)
	o, baseID, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	if err != nil {
		return err
	}
	if !order.IsTerminal(status) {
		return fmt.Errorf("order %s: archive status %s is not terminal", orderID, status)
	}
	if err := s.sm.ValidateTransition(o.Status, status); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}

	completed := sql.NullInt64{}
	if o.Completed != nil {
		completed = sql.NullInt64{Int64: o.Completed.Unix(), Valid: true}
	}
	if status == order.StatusCanceled || (status == order.StatusCompleted && o.Type == order.TypeProfit) {
		completed = sql.NullInt64{Int64: at.Unix(), Valid: true}
	}
	base := sql.NullString{}
	if baseID != "" {
		base = sql.NullString{String: baseID, Valid: true}
	}
	_, err = tx.Exec(`INSERT INTO archive_orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Profile), string(o.Type), string(status), string(o.Side),
		o.Price, o.Quantity, o.Created.Unix(), completed, base, o.ProfitMarkup)
	if err != nil {
		return fmt.Errorf("insert archive order %s: %w", orderID, err)
	}
	if _, err := tx.Exec(`DELETE FROM orders WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete live order %s: %w", orderID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetStats(start, end time.Time) (map[order.Profile]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo := int64(math.MinInt64)
	if !start.IsZero() {
		lo = start.Unix()
	}
	hi := int64(math.MaxInt64)
	if !end.IsZero() {
		hi = end.Unix()
	}
	rows, err := s.db.Query(`SELECT profile, SUM(profit_markup) FROM archive_orders
		WHERE order_type = ? AND status = ? AND completed >= ? AND completed < ?
		GROUP BY profile`,
		string(order.TypeProfit), string(order.StatusCompleted), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[order.Profile]float64)
	for rows.Next() {
		var profile string
		var total float64
		if err := rows.Scan(&profile, &total); err != nil {
			return nil, err
		}
		stats[order.Profile(profile)] = total
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, string, error) {
	var o order.Order
	var profile, typ, status, side string
	var created int64
	var completed sql.NullInt64
	var baseID sql.NullString
	err := row.Scan(&o.ID, &profile, &typ, &status, &side,
		&o.Price, &o.Quantity, &created, &completed, &baseID, &o.ProfitMarkup)
	if err != nil {
		return nil, "", err
	}
	o.Profile = order.Profile(profile)
	o.Type = order.Type(typ)
	o.Status = order.Status(status)
	o.Side = order.Side(side)
	o.Created = time.Unix(created, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		o.Completed = &t
	}
	return &o, baseID.String, nil
}

func checkAffected(res sql.Result, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	return nil
}
