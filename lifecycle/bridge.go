// Package lifecycle 将 MCP 传输的启停与注册中心的注册、注销绑定在一起。
//
// Bridge 保证：
//   - 传输在注册成功之前不会开始接收请求
//   - 传输以任何方式退出后都会尝试一次注销，且最多一次
//   - 心跳判定实例丢失时在不中断传输的前提下重新注册
//
// 基本用法:
//
//	bridge, _ := lifecycle.New(reg, &lifecycle.Config{ServiceName: "demo"},
//		lifecycle.WithLogger(logger))
//	runner, _ := transport.NewStreamable(server, &transport.StreamableConfig{Port: 8080})
//	err := bridge.Run(ctx, runner)
package lifecycle

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/transport"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// StartFunc 启动传输并阻塞到其退出
type StartFunc func(ctx context.Context) error

// Bridge 注册生命周期桥
type Bridge struct {
	reg      registry.Registry
	cfg      Config
	logger   clog.Logger
	meter    metrics.Meter
	metrics  *bridgeMetrics
	lifespan Lifespan
	resolver HostResolver
	limiter  *rate.Limiter

	mu        sync.Mutex
	state     State
	handle    *registry.Handle
	instance  *registry.ServiceInstance
	deregOnce *sync.Once
	deregErr  error
}

// New 创建 Bridge，配置错误以 *ConfigurationError 返回
func New(reg registry.Registry, cfg *Config, opts ...Option) (*Bridge, error) {
	if reg == nil {
		return nil, configError("registry", "registry is required")
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	m, err := newBridgeMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		reg:      reg,
		cfg:      c,
		logger:   o.logger.With(clog.String("service", c.ServiceName)),
		meter:    o.meter,
		metrics:  m,
		lifespan: o.lifespan,
		resolver: o.resolver,
		limiter:  rate.NewLimiter(rate.Every(c.ReregisterInterval), 1),
		state:    StateUnregistered,
	}
	b.metrics.setState(context.Background(), c.ServiceName, StateUnregistered)
	return b, nil
}

// State 返回当前生命周期状态
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Handle 返回当前有效的注册句柄，未注册时为 nil
func (b *Bridge) Handle() *registry.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// Instance 返回最近一次注册的实例副本
func (b *Bridge) Instance() *registry.ServiceInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.instance.Clone()
}

// transitionLocked 调用方必须持有 mu
func (b *Bridge) transitionLocked(ctx context.Context, to State) error {
	from := b.state
	if !canTransition(from, to) {
		return xerrors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	b.state = to
	b.metrics.setState(ctx, b.cfg.ServiceName, to)
	b.logger.Debug("state changed", clog.String("from", from.String()), clog.String("to", to.String()))
	return nil
}

// Run 按 runner 的地址注册，运行传输直到退出，然后注销
func (b *Bridge) Run(ctx context.Context, r transport.Runner) error {
	h, err := b.RegisterForTransport(ctx, r.Endpoint())
	if err != nil {
		return err
	}
	return b.RunUntilStopped(ctx, h, r.Run)
}

// RegisterForTransport 根据传输地址构造实例并注册
//
// 地址或配置不合法时在任何网络调用之前返回 *ConfigurationError；
// 注册中心不可用时按退避重试至多 RegisterAttempts 次，仍失败返回 *RegistrationError，
// 状态进入 Failed。
func (b *Bridge) RegisterForTransport(ctx context.Context, ep transport.Endpoint) (*registry.Handle, error) {
	inst, err := b.buildInstance(ep)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if err := b.transitionLocked(ctx, StateRegistering); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.mu.Unlock()

	h, err := b.registerWithRetry(ctx, inst)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		_ = b.transitionLocked(ctx, StateFailed)
		b.logger.Error("failed to register instance",
			clog.String("endpoint", ep.String()),
			clog.ErrorWithCode(err, registry.ErrorCode(err)))
		return nil, &RegistrationError{Cause: err}
	}

	b.handle = h
	b.instance = h.Instance()
	b.deregOnce = &sync.Once{}
	_ = b.transitionLocked(ctx, StateRegistered)
	b.logger.Info("instance registered",
		clog.String("instance_id", h.ID()),
		clog.String("backend", h.Backend()),
		clog.String("address", b.instance.Address()))
	return h, nil
}

func (b *Bridge) buildInstance(ep transport.Endpoint) (*registry.ServiceInstance, error) {
	switch ep.Kind {
	case registry.TransportStdio:
		if ep.Port != 0 || ep.Path != "" {
			return nil, configError("transport", "stdio transport does not take a port or path")
		}
	case registry.TransportStreaming:
		if ep.Port <= 0 || ep.Port > 65535 {
			return nil, configError("transport.port", "port %d out of range", ep.Port)
		}
		if ep.Path != "" && !strings.HasPrefix(ep.Path, "/") {
			return nil, configError("transport.mount_path", "path %q must start with /", ep.Path)
		}
	default:
		return nil, configError("transport.kind", "unknown transport %q", ep.Kind)
	}

	host, err := resolveHost(b.cfg.AdvertisedHost, ep.Host, b.resolver)
	if err != nil {
		return nil, configError("service.advertised_host", "%v", err)
	}

	inst := &registry.ServiceInstance{
		ID:          b.cfg.InstanceID,
		ServiceName: b.cfg.ServiceName,
		Transport:   ep.Kind,
		Host:        host,
		Version:     b.cfg.Version,
		Metadata:    maps.Clone(b.cfg.Metadata),
	}
	if ep.Kind == registry.TransportStreaming {
		port := ep.Port
		inst.Port = &port
		if ep.Path != "" {
			path := ep.Path
			inst.Path = &path
		}
	}
	if err := inst.Validate(); err != nil {
		return nil, configError("service", "%v", err)
	}
	return inst, nil
}

// registerWithRetry 只在注册中心不可用时重试，拒绝类错误立即返回
func (b *Bridge) registerWithRetry(ctx context.Context, inst *registry.ServiceInstance) (*registry.Handle, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.cfg.RegisterBackoff
	policy.MaxElapsedTime = 0

	var (
		h       *registry.Handle
		attempt int
	)
	op := func() error {
		attempt++
		var err error
		h, err = b.reg.Register(ctx, inst)
		if err != nil && !xerrors.Is(err, registry.ErrRegistryUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		b.logger.Warn("registry unavailable, retrying registration",
			clog.Int("attempt", attempt),
			clog.Duration("backoff", next),
			clog.ErrorWithCode(err, registry.ErrorCode(err)))
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(b.cfg.RegisterAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, retry, notify); err != nil {
		return nil, err
	}
	return h, nil
}

// RunUntilStopped 在 lifespan 内运行传输，期间维持心跳，退出后注销
//
// h 必须是本 Bridge 当前持有的有效句柄，否则返回 ErrNotRegistered 且不启动传输。
// 无论传输正常结束、出错还是 panic，都会执行一次注销。
// 因 ctx 取消而结束时返回 nil。
func (b *Bridge) RunUntilStopped(ctx context.Context, h *registry.Handle, start StartFunc) error {
	if start == nil {
		return configError("transport", "start function is required")
	}

	b.mu.Lock()
	current, state := b.handle, b.state
	b.mu.Unlock()
	if h == nil || h != current || state != StateRegistered {
		return xerrors.Wrapf(ErrNotRegistered, "state %s", state)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = b.Shutdown(ctx)
	}()

	if !b.cfg.DisableHeartbeat {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.watch(runCtx, h)
		}()
	}

	b.logger.Info("transport starting", clog.String("instance_id", h.ID()))
	err := b.lifespan.Run(runCtx, start)
	if err != nil && ctx.Err() != nil &&
		(xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded)) {
		err = nil
	}
	if err != nil {
		b.logger.Error("transport exited with error", clog.Error(err))
		return err
	}
	b.logger.Info("transport stopped")
	return nil
}

// watch 维持心跳，实例丢失时重新注册并继续监视新句柄
func (b *Bridge) watch(ctx context.Context, h *registry.Handle) {
	for {
		hb := registry.StartHeartbeat(ctx, b.reg, h, b.cfg.Heartbeat,
			registry.WithLogger(b.logger), registry.WithMeter(b.meter))

		select {
		case <-ctx.Done():
			hb.Stop()
			return
		case ev := <-hb.Lost():
			hb.Stop()
			next, ok := b.reregister(ctx, ev)
			if !ok {
				return
			}
			h = next
		}
	}
}

// reregister 重新注册同一逻辑实例，尝试之间受 limiter 限速，直到成功或 ctx 结束
func (b *Bridge) reregister(ctx context.Context, ev registry.LostEvent) (*registry.Handle, bool) {
	b.mu.Lock()
	if b.state != StateRegistered || b.handle != ev.Handle {
		b.mu.Unlock()
		return nil, false
	}
	_ = b.transitionLocked(ctx, StateRegistering)
	inst := b.instance.Clone()
	b.mu.Unlock()

	b.logger.Warn("registration lost, re-registering",
		clog.Int("failures", ev.Failures),
		clog.ErrorWithCode(ev.Err, registry.ErrorCode(ev.Err)))

	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, false
		}

		// 请求一旦发出就不随传输退出而取消，否则注册中心可能留下无人撤销的条目
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.ReregisterTimeout)
		h, err := b.reg.Register(attemptCtx, inst)
		cancel()
		b.metrics.reregistered(ctx, err)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false
			}
			b.logger.Warn("re-registration failed", clog.ErrorWithCode(err, registry.ErrorCode(err)))
			continue
		}

		// 传输已退出但尚未注销时照常接管新句柄，随后的 Shutdown 负责注销它
		b.mu.Lock()
		if b.state != StateRegistering {
			// 重新注册期间已开始关闭，撤回刚写入的条目
			b.mu.Unlock()
			b.drop(ctx, h)
			return nil, false
		}
		b.handle = h
		b.instance = h.Instance()
		_ = b.transitionLocked(ctx, StateRegistered)
		b.mu.Unlock()

		b.logger.Info("instance re-registered", clog.String("instance_id", h.ID()))
		return h, true
	}
}

func (b *Bridge) drop(ctx context.Context, h *registry.Handle) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.DeregisterTimeout)
	defer cancel()
	if err := b.reg.Deregister(dctx, h); err != nil {
		b.logger.Warn("failed to withdraw re-registered instance", clog.Error(err))
	}
}

// Shutdown 注销当前实例，每次注册至多注销一次
//
// 未注册时为空操作。注销使用独立于 ctx 取消信号的 DeregisterTimeout 预算；
// 失败只记录日志并使状态进入 Failed，重复调用返回首次的结果。
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	once := b.deregOnce
	b.mu.Unlock()
	if once == nil {
		return nil
	}

	once.Do(func() {
		err := b.deregister(ctx)
		b.mu.Lock()
		b.deregErr = err
		b.mu.Unlock()
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deregErr
}

func (b *Bridge) deregister(ctx context.Context) error {
	b.mu.Lock()
	h := b.handle
	if h == nil || (b.state != StateRegistered && b.state != StateRegistering) {
		b.mu.Unlock()
		return nil
	}
	_ = b.transitionLocked(ctx, StateDeregistering)
	b.mu.Unlock()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.DeregisterTimeout)
	defer cancel()
	err := b.reg.Deregister(dctx, h)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		_ = b.transitionLocked(ctx, StateFailed)
		b.logger.Error("failed to deregister instance",
			clog.String("instance_id", h.ID()),
			clog.ErrorWithCode(err, registry.ErrorCode(err)))
		return xerrors.Wrapf(err, "deregister %s", h.ID())
	}
	_ = b.transitionLocked(ctx, StateDeregistered)
	b.logger.Info("instance deregistered", clog.String("instance_id", h.ID()))
	return nil
}
