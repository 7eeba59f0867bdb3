package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestLocalLocker_MutualExclusion 测试同一 key 互斥
func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "a-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}

// TestLocalLocker_IndependentKeys 测试不同 key 互不阻塞
func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), "a-1")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "a-2")
	require.NoError(t, err)
	unlockB()
}

// TestLocalLocker_ContextCancel 测试等待锁时取消
func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "a-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	// 重复释放无副作用
	unlock()
	assert.Equal(t, 0, l.size())
}

// TestRedisLocker_Unavailable 测试 Redis 不可用时返回错误
func TestRedisLocker_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, time.Second)
	_, err := l.Lock(context.Background(), "a-1")
	assert.Error(t, err)
}
