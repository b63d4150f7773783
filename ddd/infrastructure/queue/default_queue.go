package queue

import (
	"sync"

	"distribution-service/pkg/config"
)

var (
	queueOnce    sync.Once
	defaultQueue *MemoryEventQueue
)

// DefaultEventQueue 获取默认事件队列
func DefaultEventQueue() *MemoryEventQueue {
	queueOnce.Do(func() {
		capacity := 100
		if cfg := config.GetGlobalConfig(); cfg != nil {
			if cfg.Worker.QueueCapacity > 0 {
				capacity = cfg.Worker.QueueCapacity
			}
		}
		defaultQueue = NewMemoryEventQueue(capacity)
	})
	return defaultQueue
}

// CloseDefaultEventQueue 关闭默认事件队列
func CloseDefaultEventQueue() {
	if defaultQueue != nil {
		_ = defaultQueue.Close()
	}
}
