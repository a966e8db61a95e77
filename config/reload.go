package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 配置重载成功后的回调
type ReloadCallback func(oldConfig, newConfig *Config)

// Reloader 轮询配置文件的修改时间，变化后重新加载并校验。
// 校验失败时保留当前配置。
type Reloader struct {
	loader   *Loader
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	current   *Config
	modTime   time.Time
	callbacks []ReloadCallback
}

// NewReloader 以 current 为初始配置创建 Reloader。loader 必须设置了配置文件路径。
func NewReloader(loader *Loader, current *Config, logger *zap.Logger) (*Reloader, error) {
	if loader.configPath == "" {
		return nil, fmt.Errorf("reloader requires a config file path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		loader:   loader,
		interval: time.Second,
		logger:   logger.With(zap.String("component", "config_reloader"), zap.String("path", loader.configPath)),
		current:  current,
	}
	if info, err := os.Stat(loader.configPath); err == nil {
		r.modTime = info.ModTime()
	}
	return r, nil
}

// WithInterval 设置轮询间隔
func (r *Reloader) WithInterval(d time.Duration) *Reloader {
	if d > 0 {
		r.interval = d
	}
	return r
}

// OnReload 注册回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Current 返回当前生效的配置
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run 轮询直到 ctx 取消
func (r *Reloader) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Check(); err != nil {
				r.logger.Warn("config reload rejected, keeping current config", zap.Error(err))
			}
		}
	}
}

// Check 检查一次文件。文件有修改且新配置有效时应用并返回 true。
func (r *Reloader) Check() (bool, error) {
	info, err := os.Stat(r.loader.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	r.mu.Lock()
	if !info.ModTime().After(r.modTime) {
		r.mu.Unlock()
		return false, nil
	}
	// 无论成败都记下修改时间，避免对同一个坏文件反复报错
	r.modTime = info.ModTime()
	r.mu.Unlock()

	next, err := r.loader.Load()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	callbacks := append([]ReloadCallback(nil), r.callbacks...)
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.Strings("changed", ChangedSections(prev, next)))
	for _, cb := range callbacks {
		cb(prev, next)
	}
	return true, nil
}

// ChangedSections 返回取值不同的顶层配置段（yaml 键名）
func ChangedSections(oldConfig, newConfig *Config) []string {
	ov := reflect.ValueOf(oldConfig).Elem()
	nv := reflect.ValueOf(newConfig).Elem()
	t := ov.Type()

	var changed []string
	for i := 0; i < t.NumField(); i++ {
		if reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" {
			name = strings.ToLower(t.Field(i).Name)
		}
		changed = append(changed, name)
	}
	return changed
}
