package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher 监听配置文件变更
//
// 只有日志配置支持热更新,流程策略在启动时加载一次后不再变化。
type Watcher struct {
	path     string
	viper    *viper.Viper
	onLog    []func(LogConfig)
	onError  func(error)
	current  LogConfig
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewWatcher 创建配置监听器
func NewWatcher(cfg *Config, path string) *Watcher {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	return &Watcher{
		path:    path,
		viper:   v,
		current: cfg.Log,
	}
}

// OnLogChange 注册日志配置变更回调
func (w *Watcher) OnLogChange(fn func(LogConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLog = append(w.onLog, fn)
}

// OnError 注册配置解析失败回调
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start 启动监听
func (w *Watcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return err
	}

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		w.reload()
	})
	w.viper.WatchConfig()
	return nil
}

// reload 重新解析日志配置并通知回调
func (w *Watcher) reload() {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return
	}
	onError := w.onError
	w.mu.RUnlock()

	var next Config
	if err := w.viper.Unmarshal(&next); err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	logCfg := next.Log

	w.mu.Lock()
	if logCfg == w.current {
		w.mu.Unlock()
		return
	}
	w.current = logCfg
	callbacks := make([]func(LogConfig), len(w.onLog))
	copy(callbacks, w.onLog)
	w.mu.Unlock()

	// 回调在锁外执行
	for _, fn := range callbacks {
		fn(logCfg)
	}
}

// Stop 停止监听,之后的文件变更被忽略
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	})
}

// Current 返回当前生效的日志配置
func (w *Watcher) Current() LogConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
