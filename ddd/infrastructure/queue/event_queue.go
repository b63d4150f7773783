package queue

import (
	"context"
	"errors"
	"sync"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("queue is closed")

// EventQueue 流水线事件队列接口
type EventQueue interface {
	// Enqueue 入队事件（非阻塞，满时返回 errno.ErrQueueFull）
	Enqueue(ctx context.Context, event vo.PipelineEvent) error

	// Dequeue 出队事件（阻塞）
	Dequeue(ctx context.Context) (vo.PipelineEvent, error)

	// Size 获取队列大小
	Size() int

	// Close 关闭队列
	Close() error

	// IsClosed 检查队列是否已关闭
	IsClosed() bool
}

// MemoryEventQueue 基于内存的事件队列实现
type MemoryEventQueue struct {
	queue   chan vo.PipelineEvent
	closed  bool
	mu      sync.RWMutex
	metrics *QueueMetrics
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	DroppedCount uint64
	MaxSize      int
	CurrentSize  int
	mu           sync.RWMutex
}

// NewMemoryEventQueue 创建内存事件队列
func NewMemoryEventQueue(capacity int) *MemoryEventQueue {
	if capacity <= 0 {
		capacity = 1000 // 默认容量
	}
	return &MemoryEventQueue{
		queue:   make(chan vo.PipelineEvent, capacity),
		metrics: &QueueMetrics{MaxSize: capacity},
	}
}

// Enqueue 入队事件
func (q *MemoryEventQueue) Enqueue(ctx context.Context, event vo.PipelineEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if event.VideoID == "" {
		return errno.ErrVideoUUIDRequired
	}

	select {
	case q.queue <- event:
		q.updateMetrics(func(m *QueueMetrics) { m.EnqueueCount++ })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.updateMetrics(func(m *QueueMetrics) { m.DroppedCount++ })
		return errno.ErrQueueFull
	}
}

// Dequeue 出队事件（阻塞），队列关闭且取空后返回 ErrQueueClosed
func (q *MemoryEventQueue) Dequeue(ctx context.Context) (vo.PipelineEvent, error) {
	select {
	case event, ok := <-q.queue:
		if !ok {
			return vo.PipelineEvent{}, ErrQueueClosed
		}
		q.updateMetrics(func(m *QueueMetrics) { m.DequeueCount++ })
		return event, nil
	case <-ctx.Done():
		return vo.PipelineEvent{}, ctx.Err()
	}
}

// Size 获取队列大小
func (q *MemoryEventQueue) Size() int {
	return len(q.queue)
}

// Close 关闭队列，已入队的事件仍可取出
func (q *MemoryEventQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}

// IsClosed 检查队列是否已关闭
func (q *MemoryEventQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// GetMetrics 获取队列指标
func (q *MemoryEventQueue) GetMetrics() QueueMetrics {
	q.metrics.mu.RLock()
	defer q.metrics.mu.RUnlock()
	return QueueMetrics{
		EnqueueCount: q.metrics.EnqueueCount,
		DequeueCount: q.metrics.DequeueCount,
		DroppedCount: q.metrics.DroppedCount,
		MaxSize:      q.metrics.MaxSize,
		CurrentSize:  q.Size(),
	}
}

func (q *MemoryEventQueue) updateMetrics(fn func(m *QueueMetrics)) {
	q.metrics.mu.Lock()
	defer q.metrics.mu.Unlock()
	fn(q.metrics)
}

// QueuePublisher 将事件写入本地队列，实现 gateway.EventPublisher
type QueuePublisher struct {
	queue EventQueue
}

func NewQueuePublisher(q EventQueue) *QueuePublisher {
	return &QueuePublisher{queue: q}
}

func (p *QueuePublisher) Publish(ctx context.Context, event vo.PipelineEvent) error {
	return p.queue.Enqueue(ctx, event)
}
