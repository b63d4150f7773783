package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/queue"
	"distribution-service/pkg/logger"
)

// EventHandler 处理单个流水线事件
type EventHandler interface {
	HandleEvent(ctx context.Context, event vo.PipelineEvent) error
}

// EventHandlerFunc 函数适配
type EventHandlerFunc func(ctx context.Context, event vo.PipelineEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event vo.PipelineEvent) error {
	return f(ctx, event)
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedEvents  uint64
	SuccessfulEvents uint64
	FailedEvents     uint64
	CurrentlyRunning int
	StartTime        time.Time
	LastEventTime    time.Time
}

// PipelineWorker 从事件队列取事件并交给 handler，多个协程并发消费
type PipelineWorker struct {
	id          string
	queue       queue.EventQueue
	handler     EventHandler
	workerCount int
	running     bool
	cancel      context.CancelFunc
	stats       WorkerStats
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewPipelineWorker 创建流水线工作器
func NewPipelineWorker(id string, q queue.EventQueue, handler EventHandler, workerCount int) *PipelineWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &PipelineWorker{
		id:          id,
		queue:       q,
		handler:     handler,
		workerCount: workerCount,
	}
}

// Start 启动工作器
func (w *PipelineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.stats.StartTime = time.Now()

	logger.Infof("Starting pipeline worker %s with %d goroutines", w.id, w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}
	return nil
}

// Stop 停止工作器，等待正在处理的事件结束
func (w *PipelineWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	logger.Infof("Stopping pipeline worker %s", w.id)
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logger.Infof("Pipeline worker %s stopped", w.id)
	return nil
}

// IsRunning 检查工作器是否运行中
func (w *PipelineWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *PipelineWorker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *PipelineWorker) workerLoop(ctx context.Context, n int) {
	defer w.wg.Done()
	for {
		event, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warnf("Worker %s-%d failed to dequeue event: %v", w.id, n, err)
			continue
		}
		w.process(ctx, event, n)
	}
}

func (w *PipelineWorker) process(ctx context.Context, event vo.PipelineEvent, n int) {
	w.updateStats(func(s *WorkerStats) { s.CurrentlyRunning++ })
	start := time.Now()
	err := w.safeHandle(ctx, event)
	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedEvents++
		s.LastEventTime = time.Now()
		if err != nil {
			s.FailedEvents++
		} else {
			s.SuccessfulEvents++
		}
	})

	fields := map[string]interface{}{
		"worker":     fmt.Sprintf("%s-%d", w.id, n),
		"type":       string(event.Type),
		"video_uuid": event.VideoID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if event.Platform != "" {
		fields["platform"] = event.Platform.String()
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.Warn("pipeline event failed", fields)
		return
	}
	logger.Debug("pipeline event handled", fields)
}

func (w *PipelineWorker) safeHandle(ctx context.Context, event vo.PipelineEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", event.Type, r)
		}
	}()
	return w.handler.HandleEvent(ctx, event)
}

func (w *PipelineWorker) updateStats(fn func(s *WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
