package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"xmb-trader-go/infrastructure/logger"
)

// Watcher 配置热更新器。监听配置文件的写入事件，冷却期内的重复
// 事件被忽略；重载失败只记录日志，进程继续用旧配置运行。
type Watcher struct {
	path     string
	cooldown time.Duration
	watcher  *fsnotify.Watcher
	log      *logger.Logger

	mu         sync.Mutex
	lastReload time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher 创建热更新器。cooldown <= 0 时使用 5s。
func NewWatcher(path string, cooldown time.Duration, log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &Watcher{
		path:     path,
		cooldown: cooldown,
		watcher:  fw,
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听；onUpdate 在成功重载后收到新配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(Config)) error {
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.watch(ctx, onUpdate)
	return nil
}

// Stop 停止监听并关闭底层 watcher。
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
		// 已经停止
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(1 * time.Second):
		// 超时，watch goroutine 可能没有启动
	}
	return w.watcher.Close()
}

func (w *Watcher) watch(ctx context.Context, onUpdate func(Config)) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// 只处理写入和创建事件
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleChange(onUpdate)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("Config watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleChange(onUpdate func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReload) < w.cooldown {
		return
	}

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		if w.log != nil {
			w.log.Warn("Config reload failed, keeping previous config", zap.Error(err))
		}
		return
	}

	w.lastReload = time.Now()
	if onUpdate != nil {
		onUpdate(cfg)
	}
}

// LastReloadTime 返回最后一次成功重载的时间。
func (w *Watcher) LastReloadTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}
