package main

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ceyewan/nacos-mcp/mcpserver"
)

type pingInput struct{}

type pingOutput struct {
	Message string    `json:"message" jsonschema:"always pong"`
	Time    time.Time `json:"time" jsonschema:"server time"`
}

type echoInput struct {
	Text string `json:"text" jsonschema:"text to echo back"`
}

type echoOutput struct {
	Text string `json:"text"`
}

type statusOutput struct {
	Server string `json:"server"`
	State  string `json:"state" jsonschema:"registration state"`
}

// registerTools 注册内置工具
func registerTools(srv *mcpserver.Server) {
	mcp.AddTool(srv.MCP(), &mcp.Tool{Name: "ping", Description: "Check that the server is alive"},
		func(context.Context, *mcp.CallToolRequest, pingInput) (*mcp.CallToolResult, pingOutput, error) {
			return nil, pingOutput{Message: "pong", Time: time.Now().UTC()}, nil
		})

	mcp.AddTool(srv.MCP(), &mcp.Tool{Name: "echo", Description: "Echo the given text"},
		func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, echoOutput, error) {
			return nil, echoOutput(in), nil
		})

	mcp.AddTool(srv.MCP(), &mcp.Tool{Name: "registration_status", Description: "Report the registry state of this server"},
		func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, statusOutput, error) {
			return nil, statusOutput{Server: srv.Name(), State: srv.State().String()}, nil
		})
}
