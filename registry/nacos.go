package registry

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	nacoslog "github.com/nacos-group/nacos-sdk-go/v2/common/logger"
	"github.com/nacos-group/nacos-sdk-go/v2/model"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"github.com/ceyewan/nacos-mcp/breaker"
	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

const backendNacos = "nacos"

// namingClient nacos-sdk-go 命名客户端中用到的方法
type namingClient interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
	GetService(param vo.GetServiceParam) (model.Service, error)
	CloseClient()
}

// namingFactory 创建命名客户端
type namingFactory func() (namingClient, error)

// nacosRegistry 基于 nacos-sdk-go 命名客户端的 Registry 实现
//
// SDK 客户端在首次请求时创建：创建过程会建立 gRPC 连接，配置校验阶段不应触发。
// SDK 方法不接受 context，每次调用在独立 goroutine 中执行，超时或取消后调用方立即返回。
type nacosRegistry struct {
	cfg     *NacosConfig
	factory namingFactory
	brk     breaker.Breaker
	logger  clog.Logger
	metrics *requestMetrics
	closed  atomic.Bool

	clientMu sync.Mutex
	client   namingClient
}

// nacosIdentity Nacos 用于定位实例的字段集合
type nacosIdentity struct {
	ServiceName string
	Group       string
	Cluster     string
	IP          string
	Port        int
	Weight      float64
	Metadata    map[string]string
}

// NewNacos 创建 Nacos 后端
//
// 使用示例:
//
//	reg, err := registry.NewNacos(&registry.NacosConfig{
//		Endpoint: "127.0.0.1:8848",
//		Username: "nacos",
//		Password: "nacos",
//	}, registry.WithLogger(logger), registry.WithMeter(meter))
func NewNacos(cfg *NacosConfig, opts ...Option) (Registry, error) {
	return newNacos(cfg, nil, opts...)
}

func newNacos(cfg *NacosConfig, factory namingFactory, opts ...Option) (*nacosRegistry, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "nacos config is required")
	}
	c := *cfg
	c.setDefaults()

	server, err := c.serverConfig()
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	logger := o.logger.With(clog.String("backend", backendNacos))

	if factory == nil {
		client := c.clientConfig()
		sdkLog := logger.WithNamespace("sdk")
		factory = func() (namingClient, error) {
			nacoslog.SetLogger(sdkLogger{l: sdkLog})
			return clients.NewNamingClient(vo.NacosClientParam{
				ClientConfig:  &client,
				ServerConfigs: []constant.ServerConfig{server},
			})
		}
	}

	brk, err := breaker.New(c.Breaker,
		breaker.WithLogger(logger),
		breaker.WithMeter(o.meter),
		breaker.WithFailurePredicate(func(err error) bool {
			return xerrors.Is(err, ErrRegistryUnavailable)
		}))
	if err != nil {
		return nil, xerrors.Wrap(err, "create nacos breaker")
	}

	m, err := newRequestMetrics(o.meter, backendNacos)
	if err != nil {
		return nil, err
	}

	logger.Info("nacos registry created",
		clog.String("endpoint", server.Scheme+"://"+net.JoinHostPort(server.IpAddr, strconv.FormatUint(server.Port, 10))+server.ContextPath),
		clog.String("namespace", c.Namespace),
		clog.String("group", c.Group),
		clog.Bool("auth", c.Username != ""))

	return &nacosRegistry{
		cfg:     &c,
		factory: factory,
		brk:     brk,
		logger:  logger,
		metrics: m,
	}, nil
}

func (r *nacosRegistry) ensureOpen() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return nil
}

// Register 注册临时实例，相同 ip/port/cluster 的实例会被 Nacos 覆盖更新
func (r *nacosRegistry) Register(ctx context.Context, instance *ServiceInstance) (*Handle, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := instance.Validate(); err != nil {
		return nil, err
	}

	inst := instance.Clone()
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	id := r.identity(inst)

	ctx, span := startSpan(ctx, backendNacos, opRegister, inst)
	start := time.Now()
	err := r.call(ctx, opRegister, func(c namingClient) error {
		return accepted(c.RegisterInstance(id.registerParam()))
	})
	r.metrics.observe(ctx, opRegister, start, err)
	endSpan(span, err)

	if err != nil {
		r.logger.WarnContext(ctx, "failed to register instance",
			clog.String("instance", inst.String()),
			clog.ErrorWithCode(err, ErrorCode(err)))
		return nil, xerrors.Wrapf(err, "register %s", inst)
	}

	r.logger.InfoContext(ctx, "instance registered",
		clog.String("service", inst.ServiceName),
		clog.String("instance_id", inst.ID),
		clog.String("address", inst.Address()),
		clog.String("transport", inst.Transport.String()))

	return newHandle(backendNacos, inst, id), nil
}

// Deregister 注销实例，Nacos 对不存在的实例同样返回成功
func (r *nacosRegistry) Deregister(ctx context.Context, h *Handle) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	id, err := handleKey[nacosIdentity](h, backendNacos)
	if err != nil {
		return err
	}

	ctx, span := startSpan(ctx, backendNacos, opDeregister, h.instance)
	start := time.Now()
	err = r.call(ctx, opDeregister, func(c namingClient) error {
		return accepted(c.DeregisterInstance(id.deregisterParam()))
	})
	r.metrics.observe(ctx, opDeregister, start, err)
	endSpan(span, err)

	if err != nil {
		return xerrors.Wrapf(err, "deregister %s", h.ID())
	}
	r.logger.InfoContext(ctx, "instance deregistered",
		clog.String("service", id.ServiceName),
		clog.String("instance_id", h.ID()))
	return nil
}

// Heartbeat 确认实例仍在服务列表中
//
// SDK 通过 gRPC 长连接维持临时实例，没有可由调用方触发的心跳请求；
// 这里查询订阅的服务列表，实例缺失即视为注册丢失。
func (r *nacosRegistry) Heartbeat(ctx context.Context, h *Handle) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	id, err := handleKey[nacosIdentity](h, backendNacos)
	if err != nil {
		return err
	}

	ctx, span := startSpan(ctx, backendNacos, opHeartbeat, h.instance)
	start := time.Now()
	err = r.call(ctx, opHeartbeat, func(c namingClient) error {
		svc, err := c.GetService(id.serviceParam())
		if err != nil {
			return classifyNacosError(err)
		}
		if !id.presentIn(svc.Hosts, h.ID()) {
			return xerrors.Wrapf(ErrRegistrationLost, "instance %s not found in nacos", h.ID())
		}
		return nil
	})
	r.metrics.observe(ctx, opHeartbeat, start, err)
	endSpan(span, err)

	if err != nil {
		return xerrors.Wrapf(err, "heartbeat %s", h.ID())
	}
	r.logger.Debug("instance present", clog.String("instance_id", h.ID()))
	return nil
}

// Close 关闭 SDK 客户端，不会主动注销已注册的实例
//
// 临时实例随 gRPC 连接断开由 Nacos 清理。
func (r *nacosRegistry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.clientMu.Lock()
	if r.client != nil {
		r.client.CloseClient()
		r.client = nil
	}
	r.clientMu.Unlock()
	r.logger.Info("nacos registry closed")
	return nil
}

// naming 返回命名客户端，首次调用时创建
func (r *nacosRegistry) naming(ctx context.Context) (namingClient, error) {
	r.clientMu.Lock()
	defer r.clientMu.Unlock()
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if r.client != nil {
		return r.client, nil
	}

	start := time.Now()
	c, err := r.factory()
	if err != nil {
		err = xerrors.Mark(xerrors.Wrap(err, "create nacos naming client"), ErrRegistryUnavailable)
	}
	r.metrics.observe(ctx, opConnect, start, err)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// call 经过熔断器执行一次 SDK 调用，RequestTimeout 或 ctx 先到时按不可用返回
func (r *nacosRegistry) call(ctx context.Context, op string, fn func(namingClient) error) error {
	_, err := r.brk.Execute(ctx, "nacos:"+op, func() (any, error) {
		return nil, r.invoke(ctx, fn)
	})
	if xerrors.Is(err, breaker.ErrOpenState) {
		err = xerrors.Mark(err, ErrRegistryUnavailable)
	}
	return err
}

func (r *nacosRegistry) invoke(ctx context.Context, fn func(namingClient) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		c, err := r.naming(ctx)
		if err != nil {
			done <- err
			return
		}
		done <- fn(c)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return xerrors.Mark(xerrors.Wrap(ctx.Err(), "nacos request"), ErrRegistryUnavailable)
	}
}

func (r *nacosRegistry) identity(inst *ServiceInstance) nacosIdentity {
	return nacosIdentity{
		ServiceName: inst.ServiceName,
		Group:       r.cfg.Group,
		Cluster:     r.cfg.ClusterName,
		IP:          inst.Host,
		Port:        inst.PortOrZero(),
		Weight:      r.cfg.Weight,
		Metadata:    inst.PublishedMetadata(),
	}
}

func (id nacosIdentity) registerParam() vo.RegisterInstanceParam {
	return vo.RegisterInstanceParam{
		Ip:          id.IP,
		Port:        uint64(id.Port),
		Weight:      id.Weight,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    id.Metadata,
		ClusterName: id.Cluster,
		ServiceName: id.ServiceName,
		GroupName:   id.Group,
	}
}

func (id nacosIdentity) deregisterParam() vo.DeregisterInstanceParam {
	return vo.DeregisterInstanceParam{
		Ip:          id.IP,
		Port:        uint64(id.Port),
		Cluster:     id.Cluster,
		ServiceName: id.ServiceName,
		GroupName:   id.Group,
		Ephemeral:   true,
	}
}

func (id nacosIdentity) serviceParam() vo.GetServiceParam {
	return vo.GetServiceParam{
		Clusters:    []string{id.Cluster},
		ServiceName: id.ServiceName,
		GroupName:   id.Group,
	}
}

// presentIn 按 ip/port 匹配实例；带实例 ID 元数据的条目还需 ID 一致
func (id nacosIdentity) presentIn(hosts []model.Instance, instanceID string) bool {
	for _, h := range hosts {
		if h.Ip != id.IP || h.Port != uint64(id.Port) {
			continue
		}
		if got, ok := h.Metadata[MetadataInstance]; ok && got != instanceID {
			continue
		}
		return true
	}
	return false
}

// accepted 把 SDK 的 (bool, error) 结果转为错误分类
func accepted(ok bool, err error) error {
	if err != nil {
		return classifyNacosError(err)
	}
	if !ok {
		return xerrors.Mark(xerrors.New("nacos refused the request"), ErrRegistryRejected)
	}
	return nil
}

// classifyNacosError 按 SDK 错误码分类，鉴权与参数错误视为拒绝，其余视为不可用
func classifyNacosError(err error) error {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case "400", "401", "403":
			return xerrors.Mark(err, ErrRegistryRejected)
		}
	}
	return xerrors.Mark(err, ErrRegistryUnavailable)
}
