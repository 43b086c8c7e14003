package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/mcpserver"
	"github.com/ceyewan/nacos-mcp/registry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nacos-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["stdio"])
	assert.True(t, names["http"])
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	http, _, err := root.Find([]string{"streamable"})
	require.NoError(t, err)
	assert.Equal(t, "http", http.Name())
	assert.NotNil(t, http.Flags().Lookup("port"))
	assert.NotNil(t, http.Flags().Lookup("mount-path"))
}

// TestLoadSettingsHTTP 测试 http 子命令的参数覆盖配置文件
func TestLoadSettingsHTTP(t *testing.T) {
	f := &cliFlags{
		configFile: writeConfig(t, "service:\n  name: weather\ntransport:\n  port: 9000\n  mount_path: /file\n"),
		mountPath:  "/mcp",
		driver:     "memory",
	}

	_, s, err := loadSettings(context.Background(), f, registry.TransportStreaming)
	require.NoError(t, err)
	assert.Equal(t, registry.TransportStreaming, s.TransportKind())
	assert.Equal(t, 9000, s.Transport.Port, "file value kept when the flag is unset")
	assert.Equal(t, "/mcp", s.Transport.MountPath)
	assert.Equal(t, "memory", s.Registry.Driver)
	assert.Equal(t, "weather", s.Service.Name)

	f.port = 8081
	_, s, err = loadSettings(context.Background(), f, registry.TransportStreaming)
	require.NoError(t, err)
	assert.Equal(t, 8081, s.Transport.Port)
}

// TestLoadSettingsStdio 测试 stdio 子命令切换传输并把日志写到 stderr
func TestLoadSettingsStdio(t *testing.T) {
	f := &cliFlags{
		configFile: writeConfig(t, "transport:\n  kind: streaming\nlog:\n  output: stdout\n"),
		logLevel:   "debug",
	}

	_, s, err := loadSettings(context.Background(), f, registry.TransportStdio)
	require.NoError(t, err)
	assert.Equal(t, registry.TransportStdio, s.TransportKind())
	assert.Zero(t, s.Transport.Port)
	assert.Empty(t, s.Transport.MountPath)
	assert.Equal(t, "stderr", s.Log.Output)
	assert.Equal(t, "debug", s.Log.Level)
}

// TestLoadSettingsStdioRejectsNetwork 测试 stdio 下文件或环境变量给出的端口与路径报配置错误
func TestLoadSettingsStdioRejectsNetwork(t *testing.T) {
	tests := []struct {
		name   string
		config string
		env    map[string]string
		field  string
	}{
		{
			name:   "port from file",
			config: "transport:\n  port: 9000\n",
			field:  "transport.port",
		},
		{
			name:   "mount path from file",
			config: "transport:\n  mount_path: /mcp\n",
			field:  "transport.mount_path",
		},
		{
			name:   "port from env",
			config: "service:\n  name: demo\n",
			env:    map[string]string{"NACOS_MCP_TRANSPORT_PORT": "9000"},
			field:  "transport.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			f := &cliFlags{configFile: writeConfig(t, tt.config)}

			_, _, err := loadSettings(context.Background(), f, registry.TransportStdio)
			var cfgErr *lifecycle.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadSettingsDefaultPort(t *testing.T) {
	f := &cliFlags{configFile: writeConfig(t, "service:\n  name: demo\n")}
	_, s, err := loadSettings(context.Background(), f, registry.TransportStreaming)
	require.NoError(t, err)
	assert.Equal(t, mcpserver.DefaultPort, s.Transport.Port)
}

func TestLoadSettingsInvalid(t *testing.T) {
	f := &cliFlags{configFile: writeConfig(t, "service:\n  name: demo\n"), logLevel: "loud"}
	_, _, err := loadSettings(context.Background(), f, registry.TransportStdio)
	var cfgErr *lifecycle.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "log.level", cfgErr.Field)
}

// TestServeInvalidConfig 测试配置错误时在注册之前退出
func TestServeInvalidConfig(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"stdio", "--config", writeConfig(t, "service:\n  name: demo\n"), "--registry", "zookeeper"})
	err := root.ExecuteContext(context.Background())

	var cfgErr *lifecycle.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "registry.driver", cfgErr.Field)
}

// TestTools 测试内置工具
func TestTools(t *testing.T) {
	reg, err := registry.NewMemory()
	require.NoError(t, err)
	serverT, clientT := mcp.NewInMemoryTransports()

	srv, err := mcpserver.New("demo", reg,
		mcpserver.WithStdioTransport(serverT),
		mcpserver.WithHostResolver(func() (string, error) { return "127.0.0.1", nil }))
	require.NoError(t, err)
	registerTools(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.RunStdio(ctx) }()

	session, err := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil).
		Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 3)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "hi"}, res.StructuredContent)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "ping", Arguments: map[string]any{}})
	require.NoError(t, err)
	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pong", out["message"])

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "registration_status", Arguments: map[string]any{}})
	require.NoError(t, err)
	out, ok = res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "registered", out["state"])

	cancel()
	require.NoError(t, <-done)
}
