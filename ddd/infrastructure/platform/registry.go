package platform

import (
	"sort"
	"sync"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

// Registry 平台客户端注册表，实现 gateway.PlatformClientResolver
type Registry struct {
	mu      sync.RWMutex
	clients map[vo.Platform]gateway.PlatformClient
}

func NewRegistry(clients ...gateway.PlatformClient) *Registry {
	r := &Registry{clients: make(map[vo.Platform]gateway.PlatformClient)}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

// NewRegistryFromConfig 为 publish.endpoints 中的每个平台创建 HTTP 客户端，未知平台跳过
func NewRegistryFromConfig(cfg config.PublishConfig) *Registry {
	r := NewRegistry()
	for name, endpoint := range cfg.Endpoints {
		p, err := vo.ParsePlatform(name)
		if err != nil {
			logger.Warnf("skip unknown platform endpoint platform=%s", name)
			continue
		}
		r.Register(NewHTTPClient(p, endpoint, cfg.RequestTimeout))
	}
	logger.Info("platform clients registered", map[string]interface{}{"platforms": r.Platforms()})
	return r
}

// Register 同一平台后注册的覆盖先注册的
func (r *Registry) Register(c gateway.PlatformClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Platform()] = c
}

func (r *Registry) Client(p vo.Platform) (gateway.PlatformClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[p]
	if !ok {
		return nil, errno.Wrapf(errno.ErrPlatformUnsupported, "no client configured for %s", p)
	}
	return c, nil
}

// Platforms 已注册的平台，按名称排序
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}
