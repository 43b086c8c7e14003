package metrics

import "github.com/ceyewan/nacos-mcp/clog"

// Option 配置 Meter 实例的选项函数类型
type Option func(*options)

type options struct {
	logger clog.Logger
}

func defaultOptions() *options {
	return &options{logger: clog.Discard()}
}

// WithLogger 注入日志记录器，组件会自动追加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}
