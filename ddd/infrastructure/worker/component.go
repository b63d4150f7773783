package worker

import (
	"fmt"

	"distribution-service/ddd/infrastructure/queue"
	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/task"
)

// PipelineWorkerComponentPlugin 负责启动本地事件队列的消费Worker
type PipelineWorkerComponentPlugin struct{}

func (p *PipelineWorkerComponentPlugin) Name() string {
	return "pipelineWorkerComponent"
}

// MustCreateComponent Kafka 启用或 worker 关闭时不创建
func (p *PipelineWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if cfg == nil || !cfg.Worker.Enabled || cfg.Kafka.Enabled {
		return nil
	}
	handler, ok := deps.PipelineApp.(EventHandler)
	if !ok {
		panic("pipeline app does not implement worker.EventHandler")
	}
	q := queue.DefaultEventQueue()
	return &pipelineWorkerComponent{
		name:   "pipelineWorker",
		worker: NewPipelineWorker(cfg.Worker.WorkerID, q, handler, cfg.Worker.Concurrency),
	}
}

type pipelineWorkerComponent struct {
	name   string
	worker *PipelineWorker
}

func (c *pipelineWorkerComponent) Start() error {
	if c.worker == nil {
		return fmt.Errorf("pipeline worker not initialized")
	}
	// 注册后台任务，让应用启动时统一管理
	task.Register(&task.Adapter{TaskName: c.name, StartFunc: c.worker.Start, StopFunc: c.worker.Stop})
	logger.Infof("Pipeline worker component registered background task name=%s", c.name)
	return nil
}

func (c *pipelineWorkerComponent) Stop() error {
	queue.CloseDefaultEventQueue()
	logger.Infof("Pipeline worker component stopped name=%s", c.name)
	return nil
}

func (c *pipelineWorkerComponent) GetName() string {
	return c.name
}
