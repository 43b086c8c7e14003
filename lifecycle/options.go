package lifecycle

import (
	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	lifespan Lifespan
	resolver HostResolver
}

func defaultOptions() *options {
	return &options{
		logger:   clog.Discard(),
		meter:    metrics.Discard(),
		lifespan: DefaultLifespan(),
		resolver: DetectHost,
	}
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "lifecycle" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("lifecycle")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithLifespan 包裹传输运行的用户生命周期钩子
func WithLifespan(l Lifespan) Option {
	return func(o *options) {
		o.lifespan = l
	}
}

// WithHostResolver 替换本机地址探测
func WithHostResolver(r HostResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
