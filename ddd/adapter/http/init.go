package http

import "distribution-service/pkg/manager"

func init() {
	// 注册控制器插件
	manager.RegisterControllerPlugin(&UploadControllerPlugin{})
	manager.RegisterControllerPlugin(&VideoControllerPlugin{})
	manager.RegisterControllerPlugin(&DistributionControllerPlugin{})
}
