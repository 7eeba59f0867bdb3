package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// StatusCounter 提供按状态统计
type StatusCounter interface {
	CountByStatus() (map[string]int64, error)
}

// Collector 定期刷新数据库相关指标
type Collector struct {
	db       *gorm.DB
	counter  StatusCounter
	statuses []string
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, counter StatusCounter, statuses []string, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		counter:  counter,
		statuses: statuses,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.collect()
	}
}

// Stop 停止并等待退出,未启动时直接返回
func (c *Collector) Stop() {
	c.cancel()
	if c.started.Load() {
		<-c.done
	}
}

// CollectOnce 立即刷新一次
func (c *Collector) CollectOnce() {
	_ = UpdateDatabaseConnections(c.db)
	if c.counter == nil {
		return
	}
	if counts, err := c.counter.CountByStatus(); err == nil {
		UpdateAssessmentsByStatus(counts, c.statuses)
	}
}

func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce()
		}
	}
}
