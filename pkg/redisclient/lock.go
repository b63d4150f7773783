package redisclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"distribution-service/pkg/logger"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only when it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ErrLockNotAcquired is returned when ctx ends before the key could be taken.
var ErrLockNotAcquired = errors.New("redis lock not acquired")

// Locker implements a per-key lock across processes with SET NX PX.
// A held lock is renewed every ttl/3 until released, so ttl only bounds how
// long a crashed holder can block others.
type Locker struct {
	client    redis.Cmdable
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

func NewLocker(client redis.Cmdable, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl, retryWait: 50 * time.Millisecond}
}

// Lock polls until the key is acquired or ctx is done. The returned release
// stops the renewal and deletes the key; calling it more than once is a no-op.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retryWait):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(fullKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
		})
	}, nil
}

func (l *Locker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			// 单次续期失败不放弃，租约还剩至少 2/3
			logger.Warnf("Redis lock renew failed key=%s error=%v", key, err)
			continue
		}
		if n == 0 {
			logger.Warnf("Redis lock lost key=%s", key)
			return
		}
	}
}
