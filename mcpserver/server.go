// Package mcpserver 提供注册中心感知的 MCP 服务器。
//
// Server 包装 *mcp.Server：调用方通过 MCP() 添加工具、资源与提示，
// 然后用 RunStdio、RunStreamable 或按配置分发的 Run 启动。传输在注册成功之后
// 才开始接收请求，退出时注销实例。
//
//	srv, _ := mcpserver.New("weather", reg, mcpserver.WithSettings(s), mcpserver.WithLogger(logger))
//	mcp.AddTool(srv.MCP(), &mcp.Tool{Name: "forecast"}, forecast)
//	err := srv.Run(ctx)
package mcpserver

import (
	"context"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/settings"
	"github.com/ceyewan/nacos-mcp/transport"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// DefaultPort 未配置端口时 Streaming 传输使用的端口
const DefaultPort = 8000

// Server 注册中心感知的 MCP 服务器
type Server struct {
	name     string
	reg      registry.Registry
	mcp      *mcp.Server
	settings *settings.Settings
	opts     *options
	logger   clog.Logger

	mu      sync.Mutex
	bridge  *lifecycle.Bridge
	running bool
}

// New 创建服务器
func New(name string, reg registry.Registry, opts ...Option) (*Server, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &lifecycle.ConfigurationError{Field: "name", Reason: "server name is required"}
	}
	if reg == nil {
		return nil, &lifecycle.ConfigurationError{Field: "registry", Reason: "registry is required"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	s := o.settings
	if s == nil {
		s = &settings.Settings{
			Service:   settings.ServiceSettings{Name: name},
			Transport: settings.TransportSettings{Kind: registry.TransportStdio.String()},
		}
	}

	impl := &mcp.Implementation{Name: name, Version: o.version}
	var serverOpts *mcp.ServerOptions
	if o.instructions != "" {
		serverOpts = &mcp.ServerOptions{Instructions: o.instructions}
	}

	return &Server{
		name:     name,
		reg:      reg,
		mcp:      mcp.NewServer(impl, serverOpts),
		settings: s,
		opts:     o,
		logger:   o.logger.WithNamespace("mcpserver").With(clog.String("server", name)),
	}, nil
}

// MCP 返回底层 *mcp.Server，用于注册工具、资源与提示
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Name 返回服务器名称
func (s *Server) Name() string {
	return s.name
}

// State 返回最近一次运行的注册状态，尚未运行时为 Unregistered
func (s *Server) State() lifecycle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge == nil {
		return lifecycle.StateUnregistered
	}
	return s.bridge.State()
}

// Run 按配置的传输方式运行
func (s *Server) Run(ctx context.Context) error {
	kind, err := registry.ParseTransportKind(s.settings.Transport.Kind)
	if err != nil {
		return &lifecycle.ConfigurationError{Field: "transport.kind", Reason: err.Error()}
	}
	switch kind {
	case registry.TransportStreaming:
		return s.RunStreamable(ctx, s.settings.Transport.MountPath)
	default:
		return s.RunStdio(ctx)
	}
}

// RunStdio 以 stdio 注册并运行，直到输入流关闭或 ctx 取消
func (s *Server) RunStdio(ctx context.Context) error {
	runner, err := transport.NewStdio(s.mcp,
		transport.WithLogger(s.opts.logger),
		transport.WithMeter(s.opts.meter),
		transport.WithMCPTransport(s.opts.stdio))
	if err != nil {
		return err
	}
	return s.run(ctx, runner)
}

// RunStreamable 以 Streamable HTTP 注册并运行，mountPath 为空时处理所有路径
func (s *Server) RunStreamable(ctx context.Context, mountPath string) error {
	cfg := s.settings.StreamableConfig()
	cfg.MountPath = mountPath
	if cfg.ServiceName == "" {
		cfg.ServiceName = s.name
	}
	if cfg.Port == 0 && s.opts.listener == nil {
		cfg.Port = DefaultPort
	}

	runner, err := transport.NewStreamable(s.mcp, cfg,
		transport.WithLogger(s.opts.logger),
		transport.WithMeter(s.opts.meter),
		transport.WithListener(s.opts.listener))
	if err != nil {
		return &lifecycle.ConfigurationError{Field: "transport", Reason: err.Error()}
	}
	return s.run(ctx, runner)
}

func (s *Server) run(ctx context.Context, runner transport.Runner) error {
	cfg := s.settings.LifecycleConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = s.name
	}

	opts := []lifecycle.Option{
		lifecycle.WithLogger(s.opts.logger),
		lifecycle.WithMeter(s.opts.meter),
		lifecycle.WithLifespan(s.opts.lifespan),
	}
	if s.opts.resolver != nil {
		opts = append(opts, lifecycle.WithHostResolver(s.opts.resolver))
	}
	bridge, err := lifecycle.New(s.reg, cfg, opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return xerrors.Wrap(lifecycle.ErrInvalidTransition, "server is already running")
	}
	s.running = true
	s.bridge = bridge
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("starting mcp server", clog.String("endpoint", runner.Endpoint().String()))
	return bridge.Run(ctx, runner)
}

// Shutdown 注销当前实例，传输退出时也会自动注销
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	bridge := s.bridge
	s.mu.Unlock()
	if bridge == nil {
		return nil
	}
	return bridge.Shutdown(ctx)
}
