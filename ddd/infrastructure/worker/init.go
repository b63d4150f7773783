package worker

import "distribution-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&PipelineWorkerComponentPlugin{})
}
