package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile 在临时目录中写入文件
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestNew 测试创建配置加载器
func TestNew(t *testing.T) {
	_, err := New()
	require.NoError(t, err)

	_, err = New(WithConfigName(""))
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	_, err = New(WithConfigName(""), WithConfigFile("/tmp/x.yaml"))
	require.NoError(t, err)
}

// TestLoaderPriority 测试配置优先级：环境变量 > 环境特定配置 > 基础配置 > 默认值
func TestLoaderPriority(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nacos-mcp.yaml", `
service:
  name: "base-service"
  version: "1.0.0"
nacos:
  endpoint: "127.0.0.1:8848"
  group: "BASE_GROUP"
`)
	writeFile(t, dir, "nacos-mcp.prod.yaml", `
nacos:
  group: "PROD_GROUP"
`)

	t.Setenv("NACOS_MCP_TEST_ENV", "prod")
	t.Setenv("NACOS_MCP_TEST_SERVICE_NAME", "env-service")

	loader, err := New(
		WithConfigPaths(dir),
		WithEnvPrefix("nacos_mcp_test"),
	)
	require.NoError(t, err)
	loader.SetDefault("transport.kind", "stdio")
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "env-service", loader.Get("service.name"))
	assert.Equal(t, "PROD_GROUP", loader.Get("nacos.group"))
	assert.Equal(t, "1.0.0", loader.Get("service.version"))
	assert.Equal(t, "stdio", loader.Get("transport.kind"))
	assert.Equal(t, filepath.Join(dir, "nacos-mcp.yaml"), loader.ConfigFileUsed())
}

// TestLoaderUnmarshalWithEnvOnly 测试只有默认值和环境变量时也能完整反序列化
func TestLoaderUnmarshalWithEnvOnly(t *testing.T) {
	t.Setenv("NACOS_MCP_ENVONLY_NACOS_ENDPOINT", "10.0.0.1:8848")

	loader, err := New(
		WithConfigName("does-not-exist"),
		WithConfigPaths(t.TempDir()),
		WithEnvPrefix("NACOS_MCP_ENVONLY"),
	)
	require.NoError(t, err)
	loader.SetDefault("nacos.endpoint", "")
	loader.SetDefault("nacos.group", "DEFAULT_GROUP")
	require.NoError(t, loader.Load(context.Background()))

	var out struct {
		Nacos struct {
			Endpoint string `mapstructure:"endpoint"`
			Group    string `mapstructure:"group"`
		} `mapstructure:"nacos"`
	}
	require.NoError(t, loader.Unmarshal(&out))
	assert.Equal(t, "10.0.0.1:8848", out.Nacos.Endpoint)
	assert.Equal(t, "DEFAULT_GROUP", out.Nacos.Group)
	assert.Empty(t, loader.ConfigFileUsed())
}

// TestLoaderExplicitFile 测试显式指定的配置文件不存在时报错
func TestLoaderExplicitFile(t *testing.T) {
	loader, err := New(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)

	err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

// TestLoaderValidate 测试必需 key 校验
func TestLoaderValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.yaml", "service:\n  name: demo\n")

	loader, err := New(WithConfigFile(path), WithRequiredKeys("service.name"))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	loader, err = New(WithConfigFile(path), WithRequiredKeys("service.name", "nacos.endpoint"))
	require.NoError(t, err)
	err = loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "nacos.endpoint")
}

// TestLoaderWatch 测试配置文件变更通知
func TestLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "watch.yaml", "log:\n  level: info\n")

	loader, err := New(WithConfigFile(path))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	// 等待 fsnotify 就绪后再修改
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case event := <-ch:
		assert.Equal(t, "log.level", event.Key)
		assert.Equal(t, "debug", event.Value)
		assert.Equal(t, "info", event.OldValue)
		assert.Equal(t, "file", event.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for config change event")
	}
}

// TestLoaderWatchCancel 测试取消监听后通道关闭
func TestLoaderWatchCancel(t *testing.T) {
	loader, err := New(WithConfigPaths(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	_, err = loader.Watch(context.Background(), "")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
