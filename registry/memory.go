package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

const backendMemory = "memory"

// Memory 进程内的 Registry 实现，用于本地开发与测试
//
// 条目以实例 ID 为 key，重复注册覆盖旧条目；Heartbeat 在条目不存在时返回 ErrRegistrationLost。
type Memory struct {
	logger  clog.Logger
	metrics *requestMetrics

	mu        sync.RWMutex
	closed    bool
	instances map[string]*ServiceInstance
	beats     map[string]time.Time
}

// NewMemory 创建进程内注册表
func NewMemory(opts ...Option) (*Memory, error) {
	o := applyOptions(opts)
	m, err := newRequestMetrics(o.meter, backendMemory)
	if err != nil {
		return nil, err
	}
	return &Memory{
		logger:    o.logger.With(clog.String("backend", backendMemory)),
		metrics:   m,
		instances: make(map[string]*ServiceInstance),
		beats:     make(map[string]time.Time),
	}, nil
}

func (r *Memory) Register(ctx context.Context, instance *ServiceInstance) (*Handle, error) {
	if err := instance.Validate(); err != nil {
		return nil, err
	}
	inst := instance.Clone()
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}

	start := time.Now()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	record := inst.Clone()
	record.Metadata = inst.PublishedMetadata()
	r.instances[inst.ID] = record
	r.beats[inst.ID] = start
	r.mu.Unlock()
	r.metrics.observe(ctx, opRegister, start, nil)

	r.logger.Debug("instance registered", clog.String("instance", inst.String()), clog.String("instance_id", inst.ID))
	return newHandle(backendMemory, inst, inst.ID), nil
}

func (r *Memory) Deregister(ctx context.Context, h *Handle) error {
	id, err := handleKey[string](h, backendMemory)
	if err != nil {
		return err
	}

	start := time.Now()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	delete(r.instances, id)
	delete(r.beats, id)
	r.mu.Unlock()
	r.metrics.observe(ctx, opDeregister, start, nil)

	r.logger.Debug("instance deregistered", clog.String("instance_id", id))
	return nil
}

func (r *Memory) Heartbeat(ctx context.Context, h *Handle) error {
	id, err := handleKey[string](h, backendMemory)
	if err != nil {
		return err
	}

	start := time.Now()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	_, ok := r.instances[id]
	if ok {
		r.beats[id] = start
		err = nil
	} else {
		err = xerrors.Wrapf(ErrRegistrationLost, "instance %s not found", id)
	}
	r.mu.Unlock()
	r.metrics.observe(ctx, opHeartbeat, start, err)
	return err
}

func (r *Memory) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Instances 返回服务下的实例快照，按实例 ID 排序
func (r *Memory) Instances(serviceName string) []*ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ServiceInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		if inst.ServiceName == serviceName {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evict 移除实例，模拟注册中心侧的过期
func (r *Memory) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[id]
	delete(r.instances, id)
	delete(r.beats, id)
	return ok
}

// LastBeat 返回实例最近一次注册或心跳的时间
func (r *Memory) LastBeat(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.beats[id]
	return t, ok
}
