// nacos-mcp 运行一个向注册中心注册自身的 MCP 服务器。
//
//	nacos-mcp stdio --config nacos-mcp.yaml
//	nacos-mcp http --port 8080 --mount-path /mcp
package main

import (
	"context"
	"fmt"
	"os"
)

// 构建时通过 ldflags 注入
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
