package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"distribution-service/pkg/logger"
)

// ServiceName 健康检查中本服务的名称
const ServiceName = "distribution.v1.DistributionService"

// Probe 依赖检查，返回 error 表示不可用
type Probe func(ctx context.Context) error

// HealthServer gRPC 健康检查服务。对外只暴露健康状态，业务接口走 HTTP
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	probes map[string]Probe
	mu     sync.Mutex
	addr   string
}

// NewHealthServer 创建健康检查服务，probes 以组件名为 key
func NewHealthServer(probes map[string]Probe) *HealthServer {
	s := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		probes: probes,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Refresh 执行所有 probe 并更新状态。任一失败时整个服务标记为 NOT_SERVING
func (s *HealthServer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, probe := range s.probes {
		status := healthpb.HealthCheckResponse_SERVING
		if err := probe(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		s.health.SetServingStatus(name, status)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if len(errs) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, overall)
	s.health.SetServingStatus("", overall)
	return errors.Join(errs...)
}

// Serve 阻塞直到 Stop
func (s *HealthServer) Serve(lis net.Listener) error {
	s.addr = lis.Addr().String()
	logger.Infof("gRPC health server started address=%s service=%s", s.addr, ServiceName)
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop 先标记为 NOT_SERVING，再优雅关闭
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
	logger.Infof("gRPC health server stopped address=%s", s.addr)
}
