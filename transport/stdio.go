package transport

import (
	"context"
	"errors"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// Stdio 基于标准输入输出的传输
type Stdio struct {
	server    *mcp.Server
	transport mcp.Transport
	logger    clog.Logger
}

// NewStdio 创建 stdio 传输
//
// stdout 承载协议消息，日志必须输出到 stderr。
func NewStdio(server *mcp.Server, opts ...Option) (*Stdio, error) {
	if server == nil {
		return nil, ErrServerRequired
	}
	o := applyOptions(opts)

	t := o.mcpTransport
	if t == nil {
		t = &mcp.StdioTransport{}
	}
	return &Stdio{
		server:    server,
		transport: t,
		logger:    o.logger.With(clog.String("transport", "stdio")),
	}, nil
}

// Endpoint stdio 没有网络地址
func (s *Stdio) Endpoint() Endpoint {
	return Endpoint{Kind: registry.TransportStdio}
}

// Run 阻塞直到客户端关闭输入流或 ctx 取消
func (s *Stdio) Run(ctx context.Context) error {
	s.logger.Info("serving mcp over stdio")

	err := s.server.Run(ctx, s.transport)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		s.logger.Info("stdio stream closed")
		return nil
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		s.logger.Info("stdio transport stopped")
		return nil
	default:
		s.logger.Error("stdio transport failed", clog.Error(err))
		return xerrors.Wrap(err, "serve mcp over stdio")
	}
}
