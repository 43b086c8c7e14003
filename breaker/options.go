package breaker

import (
	"context"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// FallbackFunc 熔断器打开时执行的降级函数
// 返回 nil 表示降级成功，Execute 将返回 (nil, nil)
type FallbackFunc func(ctx context.Context, key string, err error) error

// FailurePredicate 判断错误是否计入熔断失败统计
type FailurePredicate func(err error) bool

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	fallback  FallbackFunc
	isFailure FailurePredicate
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithFallback 设置降级函数
func WithFallback(fallback FallbackFunc) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}

// WithFailurePredicate 设置失败判定规则，默认所有非 nil 错误均计入失败
func WithFailurePredicate(fn FailurePredicate) Option {
	return func(o *options) {
		o.isFailure = fn
	}
}
