package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/trace"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// Streamable 基于 gin 的 Streamable HTTP 传输
type Streamable struct {
	cfg      StreamableConfig
	engine   *gin.Engine
	listener net.Listener
	logger   clog.Logger
}

// NewStreamable 创建 Streamable HTTP 传输，此时不会监听端口（除非通过 WithListener 传入）
func NewStreamable(server *mcp.Server, cfg *StreamableConfig, opts ...Option) (*Streamable, error) {
	if server == nil {
		return nil, ErrServerRequired
	}
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "streamable config is required")
	}
	o := applyOptions(opts)

	c := *cfg
	c.setDefaults()
	if o.listener != nil {
		if addr, ok := o.listener.Addr().(*net.TCPAddr); ok {
			c.Port = addr.Port
		}
	}
	if err := c.validate(o.listener != nil); err != nil {
		return nil, err
	}

	httpMetrics, err := metrics.NewHTTPMetrics(o.meter, c.ServiceName, metrics.L("transport", "streaming"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create http server metrics")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		trace.GinMiddleware(c.ServiceName),
		metrics.GinMiddleware(httpMetrics),
	)

	engine.GET(c.HealthPath, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if c.MetricsPath != "" {
		engine.GET(c.MetricsPath, gin.WrapH(metrics.Handler(o.meter)))
	}

	handler := gin.WrapH(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		Stateless:    c.Stateless,
		JSONResponse: c.JSONResponse,
	}))
	if c.MountPath != "" {
		engine.Any(c.MountPath, handler)
	} else {
		engine.NoRoute(handler)
	}

	return &Streamable{
		cfg:      c,
		engine:   engine,
		listener: o.listener,
		logger:   o.logger.With(clog.String("transport", "streamable")),
	}, nil
}

// Endpoint 返回监听地址与挂载路径
func (s *Streamable) Endpoint() Endpoint {
	return Endpoint{
		Kind: registry.TransportStreaming,
		Host: s.cfg.Host,
		Port: s.cfg.Port,
		Path: s.cfg.MountPath,
	}
}

// Handler 返回 HTTP handler，便于挂到外部 server 或在测试中直接调用
func (s *Streamable) Handler() http.Handler {
	return s.engine
}

// Run 监听并服务，ctx 取消时在 ShutdownTimeout 内优雅关闭
func (s *Streamable) Run(ctx context.Context) error {
	ln := s.listener
	if ln == nil {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			s.logger.Error("failed to listen", clog.String("addr", addr), clog.Error(err))
			return xerrors.Wrapf(err, "listen on %s", addr)
		}
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving mcp over streamable http",
			clog.String("addr", ln.Addr().String()),
			clog.String("mount_path", s.cfg.MountPath))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", clog.Error(err))
			return xerrors.Wrap(err, "serve streamable http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			// 长连接的 SSE 流不会自行空闲，超时后强制关闭
			s.logger.Warn("graceful shutdown timed out, closing connections", clog.Error(err))
			_ = srv.Close()
		}
		s.logger.Info("streamable http stopped")
		return nil
	})

	return g.Wait()
}
