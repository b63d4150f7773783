package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
)

const defaultLeaseTTL = 30 * time.Second

// Instance 注册到 etcd 的实例描述。mode 区分 HTTP 接入进程与流水线 worker
type Instance struct {
	ID       string    `json:"id"`
	Service  string    `json:"service"`
	Mode     string    `json:"mode"`
	HTTPAddr string    `json:"http_addr,omitempty"`
	GRPCAddr string    `json:"grpc_addr,omitempty"`
	Started  time.Time `json:"started_at"`
}

// InstanceKey /services/{service}/{mode}/{id}
func InstanceKey(inst Instance) string {
	return fmt.Sprintf("/services/%s/%s/%s", inst.Service, inst.Mode, inst.ID)
}

// ServiceRegistry 以租约维持实例键；租约丢失(etcd 重启、网络分区)后按 retry 间隔重新注册
type ServiceRegistry struct {
	client *clientv3.Client
	inst   Instance
	ttl    time.Duration
	retry  time.Duration

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewServiceRegistry(etcdCfg config.EtcdConfig, regCfg config.ServiceRegistryConfig, inst Instance) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdCfg.Endpoints,
		DialTimeout: etcdCfg.DialTimeout,
		Username:    etcdCfg.Username,
		Password:    etcdCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	if inst.Service == "" {
		inst.Service = regCfg.ServiceName
	}
	if inst.ID == "" {
		inst.ID = regCfg.ServiceID
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.Started.IsZero() {
		inst.Started = time.Now().UTC()
	}
	r := &ServiceRegistry{client: client, inst: inst, ttl: regCfg.TTL, retry: regCfg.RefreshInterval}
	if r.ttl < time.Second {
		r.ttl = defaultLeaseTTL
	}
	if r.retry <= 0 {
		r.retry = r.ttl / 3
	}
	return r, nil
}

func (r *ServiceRegistry) Key() string { return InstanceKey(r.inst) }

// Register 首次注册同步完成，失败直接返回；之后的续约与重注册在后台进行
func (r *ServiceRegistry) Register() error {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.grant(ctx)
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.maintain(ctx, ch)
	logger.Info("Service registered", map[string]interface{}{
		"key":       r.Key(),
		"http_addr": r.inst.HTTPAddr,
		"grpc_addr": r.inst.GRPCAddr,
	})
	return nil
}

func (r *ServiceRegistry) grant(ctx context.Context) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	body, err := json.Marshal(r.inst)
	if err != nil {
		return nil, err
	}
	lease, err := r.client.Grant(ctx, int64(r.ttl/time.Second))
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := r.client.Put(ctx, r.Key(), string(body), clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("put instance key: %w", err)
	}
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return nil, fmt.Errorf("keep alive: %w", err)
	}
	r.mu.Lock()
	r.leaseID = lease.ID
	r.mu.Unlock()
	return ch, nil
}

func (r *ServiceRegistry) maintain(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer close(r.done)
	for {
		for range ch {
		}
		// keep-alive 通道关闭：要么主动注销，要么租约已失效
		if ctx.Err() != nil {
			return
		}
		logger.Warnf("Service lease lost key=%s, re-registering", r.Key())
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retry):
			}
			next, err := r.grant(ctx)
			if err == nil {
				ch = next
				logger.Infof("Service re-registered key=%s", r.Key())
				break
			}
			logger.Warnf("Service re-register failed key=%s error=%v", r.Key(), err)
		}
	}
}

// Deregister 撤销租约使实例键立即消失
func (r *ServiceRegistry) Deregister() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.mu.Lock()
	leaseID := r.leaseID
	r.mu.Unlock()
	if leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, leaseID); err != nil {
			logger.Warnf("Revoke lease failed key=%s error=%v", r.Key(), err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close etcd client: %w", err)
	}
	logger.Infof("Service deregistered key=%s", r.Key())
	return nil
}
