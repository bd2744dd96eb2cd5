package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired 等待超时仍未拿到锁
var ErrLockNotAcquired = errors.New("lock not acquired")

// 仅持有者可释放
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 分布式互斥锁句柄
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock 获取分布式锁，在 wait 内按固定间隔重试
func AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (*Lock, error) {
	if !Enabled() {
		return nil, errors.New("redis disabled")
	}
	fullKey := BuildKey("lock:" + key)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := redisClient.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{client: redisClient, key: fullKey, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release 释放锁
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
