// Package transport 运行 MCP 服务的传输循环。
//
// 提供两种 Runner：
//   - Stdio：通过标准输入输出收发 MCP 消息，流关闭或 ctx 取消时退出
//   - Streamable：基于 gin 的 Streamable HTTP 服务，ctx 取消时优雅关闭
//
// Runner 在启动前即可通过 Endpoint() 给出对外地址，供 lifecycle 在
// 接收任何请求之前完成注册：
//
//	runner, _ := transport.NewStreamable(server, &transport.StreamableConfig{
//		Host:      "0.0.0.0",
//		Port:      8080,
//		MountPath: "/mcp",
//	}, transport.WithLogger(logger))
//	ep := runner.Endpoint() // {streaming 0.0.0.0 8080 /mcp}
//	err := runner.Run(ctx)
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// ErrServerRequired 未提供 MCP Server
var ErrServerRequired = xerrors.Wrap(xerrors.ErrInvalidInput, "mcp server is required")

// Endpoint 传输对外暴露的地址信息
//
// Stdio 只有 Kind；Streaming 必须有 Host 与 Port，Path 为空表示未配置挂载路径。
type Endpoint struct {
	Kind registry.TransportKind
	Host string
	Port int
	Path string
}

func (e Endpoint) String() string {
	if e.Kind == registry.TransportStdio {
		return "stdio"
	}
	return fmt.Sprintf("%s://%s%s", e.Kind, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Path)
}

// Runner 一个可运行的传输循环
type Runner interface {
	// Endpoint 返回传输的地址信息，Run 之前即可调用
	Endpoint() Endpoint

	// Run 阻塞运行直到传输结束；ctx 取消导致的退出返回 nil
	Run(ctx context.Context) error
}
