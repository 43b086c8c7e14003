package transport

import (
	"net"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	mcpTransport mcp.Transport
	listener     net.Listener
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "transport" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("transport")
		}
	}
}

// WithMeter 注入指标 Meter，Streamable 用它记录 HTTP RED 指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithMCPTransport 替换 Stdio 使用的底层传输，测试中可传入 mcp.NewInMemoryTransports 的一端
func WithMCPTransport(t mcp.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.mcpTransport = t
		}
	}
}

// WithListener 让 Streamable 在已有的 listener 上服务，Endpoint 的端口取自 listener
func WithListener(ln net.Listener) Option {
	return func(o *options) {
		if ln != nil {
			o.listener = ln
		}
	}
}
