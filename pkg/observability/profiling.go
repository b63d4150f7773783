package observability

import (
	"github.com/grafana/pyroscope-go"

	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
)

// StartProfiling 启动 pyroscope 持续剖析；未开启时返回空的停止函数
func StartProfiling(cfg config.ProfilingConfig) (func(), error) {
	if !cfg.Enabled || cfg.ServerAddress == "" {
		return func() {}, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return func() {}, err
	}
	logger.Infof("Pyroscope profiling started server=%s app=%s", cfg.ServerAddress, cfg.AppName)
	return func() {
		if err := profiler.Stop(); err != nil {
			logger.Warnf("Pyroscope stop failed error=%v", err)
		}
	}, nil
}
