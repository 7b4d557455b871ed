package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"xmb-trader-go/market"
)

// TapeRecord 磁盘成交带的单条记录。collector 写、Tape 读，
// 价格与数量按交易所习惯序列化为字符串。
type TapeRecord struct {
	TradeID  int64   `json:"trade_id"`
	Price    float64 `json:"price,string"`
	Quantity float64 `json:"quantity,string"`
	Date     int64   `json:"date"` // unix 秒
}

// Tape 从目录读取成交带文件。文件名为写入时刻的 unix 秒，
// 内容是 trade_id -> TapeRecord 的 JSON 映射。
type Tape struct {
	dir    string
	maxAge time.Duration // 0 表示读取全部文件
	now    func() time.Time
}

func NewTape(dir string, maxAge time.Duration) *Tape {
	return &Tape{dir: dir, maxAge: maxAge, now: time.Now}
}

// SetClock 注入测试时钟。
func (t *Tape) SetClock(now func() time.Time) { t.now = now }

// Load 读取并合并所有（未过期的）成交带文件，按 (时间, trade_id)
// 升序返回。重复的 trade_id 只保留一条；损坏的文件跳过。
func (t *Tape) Load() ([]market.Trade, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read tape dir: %w", err)
	}

	var cutoff int64
	if t.maxAge > 0 {
		cutoff = t.now().Add(-t.maxAge).Unix()
	}

	merged := make(map[int64]market.Trade)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stamp, err := strconv.ParseInt(name[:len(name)-len(filepath.Ext(name))], 10, 64)
		if err != nil || stamp <= cutoff {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(t.dir, name))
		if err != nil {
			continue
		}
		var records map[string]TapeRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			continue
		}
		for _, r := range records {
			merged[r.TradeID] = market.Trade{
				ID:    r.TradeID,
				Price: r.Price,
				Qty:   r.Quantity,
				Ts:    time.Unix(r.Date, 0).UTC(),
			}
		}
	}

	trades := make([]market.Trade, 0, len(merged))
	for _, tr := range merged {
		trades = append(trades, tr)
	}
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Ts.Equal(trades[j].Ts) {
			return trades[i].ID < trades[j].ID
		}
		return trades[i].Ts.Before(trades[j].Ts)
	})
	return trades, nil
}

// WriteTapeFile 把一批成交写成一个成交带文件，文件名为 stamp 的
// unix 秒。collector 与测试共用。
func WriteTapeFile(dir string, stamp time.Time, trades []market.Trade) error {
	records := make(map[string]TapeRecord, len(trades))
	for _, tr := range trades {
		records[strconv.FormatInt(tr.ID, 10)] = TapeRecord{
			TradeID:  tr.ID,
			Price:    tr.Price,
			Quantity: tr.Qty,
			Date:     tr.Ts.Unix(),
		}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal tape file: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", stamp.Unix()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write tape file: %w", err)
	}
	return os.Rename(tmp, path)
}
