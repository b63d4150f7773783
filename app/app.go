package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	grpcadapter "distribution-service/ddd/adapter/grpc"
	"distribution-service/internal/resource"
	"distribution-service/pkg/config"
	"distribution-service/pkg/kafka"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/middleware"
	"distribution-service/pkg/observability"
	"distribution-service/pkg/registry"
	"distribution-service/pkg/task"

	// 导入组件、控制器和资源包以触发 init 注册
	_ "distribution-service/ddd/adapter/component"
	_ "distribution-service/ddd/adapter/http"
	_ "distribution-service/ddd/infrastructure/worker"
)

const serviceName = "distribution-service"

// Mode 进程运行模式
type Mode int

const (
	// ModeServer HTTP 接口 + 后台组件
	ModeServer Mode = iota
	// ModeWorker 只运行流水线组件，不对外提供 HTTP
	ModeWorker
)

func (m Mode) String() string {
	if m == ModeWorker {
		return "worker"
	}
	return "server"
}

// Run 以 server 模式启动
func Run() {
	RunWithMode(ModeServer)
}

// RunWithMode 按模式启动并阻塞到收到退出信号
func RunWithMode(mode Mode) {
	fmt.Printf("[STARTUP] Starting %s mode=%s...\n", serviceName, mode)

	cfg := MustLoadConfig()
	if mode == ModeWorker {
		cfg.Worker.Enabled = true
	}

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})
	logger.Infof("Distribution service starting mode=%s storage=%s database=%s kafka=%t", mode, cfg.Storage.Backend, cfg.Database.Driver, cfg.Kafka.Enabled)

	stopProfiling, err := observability.StartProfiling(cfg.Profiling)
	if err != nil {
		logger.Warnf("Pyroscope start failed error=%v", err)
	}
	defer stopProfiling()

	if cfg.Worker.Enabled {
		checkFFmpeg(cfg)
	}

	logger.Infof("Initializing resource manager...")
	manager.SetResourceFilter(resource.Enabled(cfg))
	manager.MustInitResources()
	defer manager.CloseResources()

	container, err := Build(cfg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to assemble services error=%v", err))
	}
	deps := container.Dependencies()

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)

	probes := healthProbes(container)
	var healthServer *grpcadapter.HealthServer
	if cfg.GRPCServer.Enabled {
		healthServer = startHealthServer(cfg, probes)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	if err := task.StartAll(runCtx); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}
	if mode == ModeWorker && !cfg.Kafka.Enabled {
		logger.Warn("worker mode without kafka only drains events produced in this process")
	}

	var server *http.Server
	if mode == ModeServer {
		server = startHTTPServer(cfg, deps, probes)
	}

	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		reg = registerService(cfg, mode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down...")

	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warnf("Service deregister failed error=%v", err)
		}
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("HTTP server forced to close error=%v", err)
		}
		cancel()
	}
	if healthServer != nil {
		healthServer.Stop()
	}

	stopped := make(chan struct{})
	go func() {
		task.StopAll()
		manager.Shutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Infof("Components closed")
	case <-time.After(cfg.Worker.ShutdownGracePeriod):
		logger.Warnf("Components did not stop within grace period=%s", cfg.Worker.ShutdownGracePeriod)
	}

	logger.Infof("Server exited safely")
	logService.Close()
	fmt.Printf("[SHUTDOWN] %s exited safely\n", serviceName)
}

// MustLoadConfig 加载并设置全局配置，失败直接退出
func MustLoadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 必须在资源管理器初始化之前
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)
	return cfg
}

// checkFFmpeg 转码依赖 ffmpeg，启动阶段直接失败
func checkFFmpeg(cfg *config.Config) {
	bin := cfg.Transcode.FFmpeg.BinaryPath
	if _, err := exec.LookPath(bin); err != nil {
		logger.Fatal(fmt.Sprintf("FFmpeg binary not found, please install or set transcode.ffmpeg.binary_path binary=%s error=%s", bin, err.Error()))
	}
	if _, err := exec.LookPath(cfg.Transcode.FFmpeg.ProbePath); err != nil {
		logger.Warnf("ffprobe not found, uploads will skip media probing binary=%s", cfg.Transcode.FFmpeg.ProbePath)
	}
	if strings.Contains(strings.ToLower(cfg.Transcode.FFmpeg.VideoCodec), "nvenc") {
		out, err := exec.Command(bin, "-hide_banner", "-encoders").Output()
		if err == nil && !strings.Contains(strings.ToLower(string(out)), "nvenc") {
			logger.Warnf("NVENC encoder not detected in FFmpeg, codec=%s", cfg.Transcode.FFmpeg.VideoCodec)
		}
	}
}

func healthProbes(c *Container) map[string]grpcadapter.Probe {
	probes := map[string]grpcadapter.Probe{}
	if c.DB != nil {
		probes["mysql"] = func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rr := resource.DefaultRedisResource(); rr.Opened() {
		probes["redis"] = rr.Ping
	}
	if c.Config.Storage.Backend == "minio" {
		probes["minio"] = resource.DefaultMinioResource().Ping
	}
	if c.Config.Kafka.Enabled {
		probes["kafka"] = kafka.DefaultClient().Ping
	}
	return probes
}

func startHealthServer(cfg *config.Config, probes map[string]grpcadapter.Probe) *grpcadapter.HealthServer {
	addr := fmt.Sprintf("%s:%d", cfg.GRPCServer.Host, cfg.GRPCServer.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to listen on gRPC port address=%s error=%v", addr, err))
	}
	hs := grpcadapter.NewHealthServer(probes)
	refresh := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := hs.Refresh(ctx); err != nil {
			logger.Warnf("Health probe failed error=%v", err)
		}
	}
	refresh(context.Background())
	task.Register(task.NewPeriodic("grpcHealthRefresh", 15*time.Second, refresh))
	go func() {
		if err := hs.Serve(lis); err != nil {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return hs
}

func startHTTPServer(cfg *config.Config, deps *manager.Dependencies, probes map[string]grpcadapter.Probe) *http.Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	router.Use(middleware.RequestContextMiddleware(), middleware.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		status, code := "ok", http.StatusOK
		checks := make(map[string]string, len(probes))
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		c.JSON(code, gin.H{
			"status":    status,
			"service":   serviceName,
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
	})

	logger.Infof("Registering routes...")
	manager.MustInitControllers(deps)
	manager.RegisterAllRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started addr=%s health_url=%s", server.Addr, fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))
	return server
}

func registerService(cfg *config.Config, mode Mode) *registry.ServiceRegistry {
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host = "127.0.0.1"
	}
	inst := registry.Instance{Mode: mode.String()}
	if mode == ModeServer {
		inst.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	}
	if cfg.GRPCServer.Enabled {
		inst.GRPCAddr = net.JoinHostPort(host, strconv.Itoa(cfg.GRPCServer.Port))
	}
	reg, err := registry.NewServiceRegistry(cfg.Etcd, cfg.ServiceRegistry, inst)
	if err != nil {
		logger.Errorf("Service registry init failed error=%v", err)
		return nil
	}
	if err := reg.Register(); err != nil {
		logger.Errorf("Service register failed error=%v", err)
		_ = reg.Deregister()
		return nil
	}
	return reg
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
