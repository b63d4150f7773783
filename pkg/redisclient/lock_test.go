package redisclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	token   string
	expires time.Time
}

// fakeRedis 只实现 SET NX PX 与释放、续期两个脚本，过期按真实时间计算
type fakeRedis struct {
	redis.Cmdable
	mu     sync.Mutex
	keys   map[string]fakeEntry
	renews int
}

func newFakeRedis() *fakeRedis { return &fakeRedis{keys: map[string]fakeEntry{}} }

func (f *fakeRedis) live(key string) (fakeEntry, bool) {
	e, ok := f.keys[key]
	if ok && time.Now().After(e.expires) {
		delete(f.keys, key)
		return fakeEntry{}, false
	}
	return e, ok
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = fakeEntry{token: value.(string), expires: time.Now().Add(ttl)}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.live(keys[0])
	if !ok || e.token != args[0] {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch sha {
	case releaseScript.Hash():
		delete(f.keys, keys[0])
	case renewScript.Hash():
		e.expires = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		f.keys[keys[0]] = e
		f.renews++
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live(key)
	return ok
}

func (f *fakeRedis) set(key, token string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = fakeEntry{token: token, expires: time.Now().Add(ttl)}
}

func (f *fakeRedis) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renews
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	client := newFakeRedis()
	l := NewLocker(client, "lock:", time.Minute)
	l.retryWait = time.Millisecond

	release, err := l.Lock(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, client.has("lock:v1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "v1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	other, err := l.Lock(context.Background(), "v2")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, client.has("lock:v1"))
	again, err := l.Lock(context.Background(), "v1")
	require.NoError(t, err)
	again()
}

func TestLocker_HeldPastTTLIsRenewed(t *testing.T) {
	client := newFakeRedis()
	l := NewLocker(client, "upload:", 60*time.Millisecond)
	l.retryWait = 5 * time.Millisecond

	release, err := l.Lock(context.Background(), "v1")
	require.NoError(t, err)

	// 持有时间远超 ttl，期间其他持有者始终拿不到
	time.Sleep(250 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "v1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.True(t, client.has("upload:v1"))
	assert.Greater(t, client.renewCount(), 2)

	release()
	renews := client.renewCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, renews, client.renewCount())

	second, err := l.Lock(context.Background(), "v1")
	require.NoError(t, err)
	second()
}

func TestLocker_LostLeaseIsNotReclaimed(t *testing.T) {
	client := newFakeRedis()
	l := NewLocker(client, "", 30*time.Millisecond)

	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	// 模拟锁过期后被其他进程持有
	client.set("k", "someone-else", time.Minute)

	time.Sleep(50 * time.Millisecond)
	release()
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "someone-else", client.keys["k"].token)
}
