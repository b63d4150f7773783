// Package keylock provides per-key mutual exclusion within one process.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyLock serialises work per key. Entries are reference counted and dropped
// once no goroutine holds or waits on them, so the map does not grow with the
// number of keys ever seen.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx is done. The returned func releases
// the key and must be called exactly once.
func (l *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *KeyLock) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
