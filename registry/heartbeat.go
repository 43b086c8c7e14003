package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// HeartbeatConfig 心跳配置
type HeartbeatConfig struct {
	// Interval 正常心跳间隔，默认 5s
	Interval time.Duration `mapstructure:"interval"`

	// FailureThreshold 连续失败多少次后判定实例丢失，默认 3
	FailureThreshold int `mapstructure:"failure_threshold"`
}

func (c *HeartbeatConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
}

// LostEvent 实例丢失通知
type LostEvent struct {
	Handle   *Handle
	Err      error // 最后一次心跳的错误
	Failures int   // 连续失败次数
}

// Heartbeat 后台心跳监视器
//
// 成功时按 Interval 发送心跳；失败后按指数退避重试（上限为 Interval），
// 成功后退避重置。连续失败达到阈值，或注册中心返回 ErrRegistrationLost，
// 在 Lost() 上发送一次事件后退出。
type Heartbeat struct {
	reg     Registry
	handle  *Handle
	cfg     HeartbeatConfig
	logger  clog.Logger
	counter metrics.Counter

	failures atomic.Int64
	lost     chan LostEvent
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// StartHeartbeat 启动心跳监视器，ctx 取消或调用 Stop 时退出
func StartHeartbeat(ctx context.Context, reg Registry, h *Handle, cfg HeartbeatConfig, opts ...Option) *Heartbeat {
	cfg.setDefaults()
	o := applyOptions(opts)

	counter, err := o.meter.Counter(MetricHeartbeatFailures, "Failed registry heartbeats.")
	if err != nil {
		o.logger.Warn("failed to create heartbeat counter", clog.Error(err))
		counter, _ = metrics.Discard().Counter(MetricHeartbeatFailures, "")
	}

	ctx, cancel := context.WithCancel(ctx)
	hb := &Heartbeat{
		reg:     reg,
		handle:  h,
		cfg:     cfg,
		logger:  o.logger.With(clog.String("instance_id", h.ID())),
		counter: counter,
		lost:    make(chan LostEvent, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go hb.run(ctx)
	return hb
}

// Lost 返回实例丢失通知，最多发送一次
func (hb *Heartbeat) Lost() <-chan LostEvent {
	return hb.lost
}

// Done 监视器退出后关闭
func (hb *Heartbeat) Done() <-chan struct{} {
	return hb.done
}

// Failures 返回当前连续失败次数
func (hb *Heartbeat) Failures() int {
	return int(hb.failures.Load())
}

// Stop 停止监视器并等待其退出，可重复调用
func (hb *Heartbeat) Stop() {
	hb.stopOnce.Do(hb.cancel)
	<-hb.done
}

func (hb *Heartbeat) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(hb.cfg.Interval/10, time.Millisecond)
	b.MaxInterval = hb.cfg.Interval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (hb *Heartbeat) run(ctx context.Context) {
	defer close(hb.done)

	b := hb.newBackOff()
	timer := time.NewTimer(hb.cfg.Interval)
	defer timer.Stop()

	hb.logger.Debug("heartbeat started",
		clog.Duration("interval", hb.cfg.Interval),
		clog.Int("failure_threshold", hb.cfg.FailureThreshold))

	for {
		select {
		case <-ctx.Done():
			hb.logger.Debug("heartbeat stopped")
			return
		case <-timer.C:
		}

		err := hb.reg.Heartbeat(ctx, hb.handle)
		if ctx.Err() != nil {
			hb.logger.Debug("heartbeat stopped")
			return
		}

		if err == nil {
			if n := hb.failures.Swap(0); n > 0 {
				hb.logger.Info("heartbeat recovered", clog.Int64("previous_failures", n))
			}
			b.Reset()
			timer.Reset(hb.cfg.Interval)
			continue
		}

		n := int(hb.failures.Add(1))
		hb.counter.Inc(ctx, metrics.L("result", resultOf(err)))
		hb.logger.Warn("heartbeat failed",
			clog.Int("failures", n),
			clog.ErrorWithCode(err, ErrorCode(err)))

		if n >= hb.cfg.FailureThreshold || xerrors.Is(err, ErrRegistrationLost) {
			hb.logger.Error("registration considered lost",
				clog.Int("failures", n),
				clog.ErrorWithCode(err, ErrorCode(err)))
			hb.lost <- LostEvent{Handle: hb.handle, Err: err, Failures: n}
			return
		}

		timer.Reset(b.NextBackOff())
	}
}
