package mcpserver

import (
	"net"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/settings"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	settings     *settings.Settings
	version      string
	instructions string
	lifespan     lifecycle.Lifespan
	resolver     lifecycle.HostResolver
	stdio        mcp.Transport
	listener     net.Listener
}

func defaultOptions() *options {
	return &options{
		logger:   clog.Discard(),
		meter:    metrics.Discard(),
		version:  "dev",
		lifespan: lifecycle.DefaultLifespan(),
	}
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "mcpserver" namespace，下游组件各自追加自己的 namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
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

// WithSettings 使用加载好的配置；未提供时使用默认配置，服务名取 New 的 name
func WithSettings(s *settings.Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}

// WithVersion 设置 MCP 实现版本
func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// WithInstructions 设置 initialize 响应中的 instructions
func WithInstructions(s string) Option {
	return func(o *options) {
		o.instructions = s
	}
}

// WithLifespan 设置包裹传输运行的生命周期钩子
func WithLifespan(l lifecycle.Lifespan) Option {
	return func(o *options) {
		o.lifespan = l
	}
}

// WithHostResolver 替换公布地址的本机探测
func WithHostResolver(r lifecycle.HostResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithStdioTransport 替换 RunStdio 使用的底层传输，用于测试
func WithStdioTransport(t mcp.Transport) Option {
	return func(o *options) {
		o.stdio = t
	}
}

// WithListener 让 RunStreamable 在已有的 listener 上服务
func WithListener(ln net.Listener) Option {
	return func(o *options) {
		o.listener = ln
	}
}
