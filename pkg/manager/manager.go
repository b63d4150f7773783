package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
)

// Resource 外部资源（数据库、缓存、对象存储、消息队列）
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin 资源插件
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 随进程启动/停止的组件
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin 组件插件
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller HTTP 控制器
type Controller interface {
	RegisterRoutes(r gin.IRouter)
}

// ControllerPlugin 控制器插件
type ControllerPlugin interface {
	Name() string
	MustCreateController(deps *Dependencies) Controller
}

// Dependencies 依赖注入容器。应用服务以 interface{} 传递，避免 pkg 依赖 ddd 层
type Dependencies struct {
	DB              *gorm.DB
	Config          *config.Config
	UploadApp       interface{}
	VideoApp        interface{}
	DistributionApp interface{}
	PipelineApp     interface{}
}

type registry struct {
	mu                sync.Mutex
	resourcePlugins   []ResourcePlugin
	componentPlugins  []ComponentPlugin
	controllerPlugins []ControllerPlugin
	resources         []Resource
	components        []Component
	controllers       []Controller
	enabled           func(name string) bool
}

var defaultRegistry = &registry{}

// RegisterResourcePlugin 注册资源插件，一般在 init 中调用
func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resourcePlugins = append(defaultRegistry.resourcePlugins, p)
}

// RegisterComponentPlugin 注册组件插件
func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.componentPlugins = append(defaultRegistry.componentPlugins, p)
}

// RegisterControllerPlugin 注册控制器插件
func RegisterControllerPlugin(p ControllerPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.controllerPlugins = append(defaultRegistry.controllerPlugins, p)
}

// SetResourceFilter 按名称决定是否启用某个资源插件（例如关闭 kafka 时跳过）
func SetResourceFilter(fn func(name string) bool) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.enabled = fn
}

// MustInitResources 打开所有资源，失败直接 panic
func MustInitResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.resourcePlugins {
		if defaultRegistry.enabled != nil && !defaultRegistry.enabled(p.Name()) {
			logger.Infof("Resource skipped name=%s", p.Name())
			continue
		}
		res := p.MustCreateResource()
		res.MustOpen()
		defaultRegistry.resources = append(defaultRegistry.resources, res)
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources 逆序关闭资源
func CloseResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.resources) - 1; i >= 0; i-- {
		defaultRegistry.resources[i].Close()
	}
	defaultRegistry.resources = nil
}

// MustInitComponents 创建并启动所有组件
func MustInitComponents(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.componentPlugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("failed to start component %s: %v", p.Name(), err))
		}
		defaultRegistry.components = append(defaultRegistry.components, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// MustInitControllers 创建所有控制器
func MustInitControllers(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.controllerPlugins {
		ctrl := p.MustCreateController(deps)
		if ctrl == nil {
			continue
		}
		defaultRegistry.controllers = append(defaultRegistry.controllers, ctrl)
	}
}

// RegisterAllRoutes 将控制器路由挂到路由器上
func RegisterAllRoutes(r gin.IRouter) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, c := range defaultRegistry.controllers {
		c.RegisterRoutes(r)
	}
}

// Shutdown 逆序停止组件
func Shutdown() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.components) - 1; i >= 0; i-- {
		c := defaultRegistry.components[i]
		if err := c.Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	defaultRegistry.components = nil
}
