// Package lock serializes writers of a single assessment. LocalLocker covers
// one process; RedisLocker extends the guarantee across replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired 在上下文结束前未能获取锁
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock 释放锁,可重复调用
type Unlock func()

// Locker 按 key 互斥
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LocalLocker 进程内按 key 互斥,空闲 key 会被回收
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock 获取 key 的锁,ctx 取消时返回 ErrNotAcquired
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// size 当前持有或等待中的 key 数量
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// 仅当值仍是自己的 token 时删除
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker 基于 SET NX PX 的分布式锁
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisLocker 创建分布式锁,ttl 需大于单次事务耗时
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		prefix: "assessment-lock:",
	}
}

// Lock 轮询获取锁直到成功或 ctx 结束
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 释放不依赖调用方的 ctx
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}
