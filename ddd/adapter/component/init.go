package component

import "distribution-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&PipelineConsumerPlugin{})
	manager.RegisterComponentPlugin(&SessionSweeperPlugin{})
}
