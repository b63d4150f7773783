package task

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BackgroundTask represents a long-running background process (consumer, worker, cron).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks  []BackgroundTask
	mu     sync.Mutex
	cancel context.CancelFunc
}

var defaultManager = &manager{}

// Register adds a background task; should be called during assembly before StartAll.
func Register(task BackgroundTask) {
	if task == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, task)
}

// StartAll starts all registered tasks once.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	var runCtx context.Context
	runCtx, defaultManager.cancel = context.WithCancel(ctx)
	for _, t := range defaultManager.tasks {
		if err := t.Start(runCtx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops running tasks in reverse registration order.
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		defaultManager.cancel()
	}
	for i := len(defaultManager.tasks) - 1; i >= 0; i-- {
		_ = defaultManager.tasks[i].Stop()
	}
	defaultManager.cancel = nil
}

// Adapter turns a pair of start/stop funcs into a BackgroundTask.
type Adapter struct {
	TaskName  string
	StartFunc func(ctx context.Context) error
	StopFunc  func() error
}

func (a *Adapter) Name() string { return a.TaskName }

func (a *Adapter) Start(ctx context.Context) error {
	if a.StartFunc == nil {
		return nil
	}
	return a.StartFunc(ctx)
}

func (a *Adapter) Stop() error {
	if a.StopFunc == nil {
		return nil
	}
	return a.StopFunc()
}

// Periodic runs fn every interval until stopped. A run never overlaps the next.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodic builds a ticker-driven task. fn is also invoked once on start.
func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context)) *Periodic {
	return &Periodic{name: name, interval: interval, fn: fn}
}

func (p *Periodic) Name() string { return p.name }

func (p *Periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("periodic task " + p.name + ": interval must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.fn(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.fn(runCtx)
			}
		}
	}()
	return nil
}

func (p *Periodic) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
