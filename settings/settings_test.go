package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/config"
	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/registry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nacos-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadFile(t *testing.T, content string) (*Settings, error) {
	t.Helper()
	loader, err := config.New(config.WithConfigFile(writeConfig(t, content)))
	require.NoError(t, err)
	return Load(context.Background(), loader)
}

func validSettings() *Settings {
	loader, _ := config.New(config.WithConfigPaths(os.TempDir()), config.WithConfigName("does-not-exist"))
	s, err := Load(context.Background(), loader)
	if err != nil {
		panic(err)
	}
	return s
}

// TestLoadDefaults 测试没有配置文件时的默认值
func TestLoadDefaults(t *testing.T) {
	loader, err := config.New(config.WithConfigPaths(t.TempDir()))
	require.NoError(t, err)

	s, err := Load(context.Background(), loader)
	require.NoError(t, err)

	assert.Equal(t, "nacos-mcp", s.Service.Name)
	assert.Equal(t, registry.TransportStdio, s.TransportKind())
	assert.Equal(t, DriverNacos, s.Registry.Driver)
	assert.Equal(t, "127.0.0.1:8848", s.Nacos.Endpoint)
	assert.Equal(t, "public", s.Nacos.Namespace)
	assert.Equal(t, "DEFAULT_GROUP", s.Nacos.Group)
	assert.Equal(t, 5, s.Nacos.HealthCheckIntervalSeconds)
	assert.Equal(t, 3, s.Nacos.HeartbeatFailureThreshold)
	assert.Equal(t, 3*time.Second, s.Nacos.DeregisterTimeout)
	assert.Equal(t, []string{"127.0.0.1:2379"}, s.Etcd.Endpoints)
	assert.Equal(t, 30*time.Second, s.Etcd.TTL)
	assert.Equal(t, "stderr", s.Log.Output)
	assert.Equal(t, "nacos-mcp", s.Metrics.ServiceName)
	assert.Equal(t, "nacos-mcp", s.Trace.ServiceName)
}

// TestLoadStreamingFile 测试从 YAML 加载 Streaming 配置
func TestLoadStreamingFile(t *testing.T) {
	s, err := loadFile(t, `
service:
  name: weather
  version: 1.2.0
  metadata:
    team: infra
transport:
  kind: http
  port: 8080
  mount_path: /mcp
nacos:
  endpoint: nacos.internal:8848
  grpc_port: 19848
  namespace: dev
  health_check_interval_seconds: 2
  heartbeat_failure_threshold: 5
  deregister_timeout: 1s
log:
  level: debug
  output: stdout
`)
	require.NoError(t, err)

	assert.Equal(t, registry.TransportStreaming, s.TransportKind())
	assert.Equal(t, "stdout", s.Log.Output, "streaming keeps the configured output")

	lc := s.LifecycleConfig()
	assert.Equal(t, "weather", lc.ServiceName)
	assert.Equal(t, "1.2.0", lc.Version)
	assert.Equal(t, "infra", lc.Metadata["team"])
	assert.Equal(t, 2*time.Second, lc.Heartbeat.Interval)
	assert.Equal(t, 5, lc.Heartbeat.FailureThreshold)
	assert.Equal(t, time.Second, lc.DeregisterTimeout)

	sc := s.StreamableConfig()
	assert.Equal(t, 8080, sc.Port)
	assert.Equal(t, "/mcp", sc.MountPath)
	assert.Equal(t, "weather", sc.ServiceName)

	nc := s.NacosConfig()
	assert.Equal(t, "nacos.internal:8848", nc.Endpoint)
	assert.EqualValues(t, 19848, nc.GrpcPort)
	assert.Equal(t, "dev", nc.Namespace)
}

// TestLoadEnvOverride 测试环境变量覆盖文件与默认值
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NACOS_MCP_TRANSPORT_KIND", "streaming")
	t.Setenv("NACOS_MCP_TRANSPORT_PORT", "9000")
	t.Setenv("NACOS_MCP_SERVICE_NAME", "from-env")
	t.Setenv("NACOS_MCP_REGISTRY_DRIVER", "memory")

	s, err := loadFile(t, "service:\n  name: from-file\n")
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Service.Name)
	assert.Equal(t, registry.TransportStreaming, s.TransportKind())
	assert.Equal(t, 9000, s.Transport.Port)
	assert.Equal(t, DriverMemory, s.Registry.Driver)
}

// TestStdioForcesStderr 测试 stdio 模式下日志不会写到 stdout
func TestStdioForcesStderr(t *testing.T) {
	s, err := loadFile(t, "transport:\n  kind: stdio\nlog:\n  output: stdout\n")
	require.NoError(t, err)
	assert.Equal(t, "stderr", s.Log.Output)

	s, err = loadFile(t, "transport:\n  kind: stdio\nlog:\n  output: /var/log/mcp.log\n")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/mcp.log", s.Log.Output)
}

// TestValidate 测试配置校验返回带字段名的 ConfigurationError
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
		field  string
	}{
		{"empty service name", func(s *Settings) { s.Service.Name = "" }, "service.name"},
		{"bad advertised host", func(s *Settings) { s.Service.AdvertisedHost = "not a host" }, "service.advertised_host"},
		{"unknown transport", func(s *Settings) { s.Transport.Kind = "grpc" }, "transport.kind"},
		{"stdio with port", func(s *Settings) { s.Transport.Port = 8080 }, "transport.port"},
		{"stdio with mount path", func(s *Settings) { s.Transport.MountPath = "/mcp" }, "transport.mount_path"},
		{"streaming without port", func(s *Settings) { s.Transport.Kind = "streaming" }, "transport.port"},
		{"streaming relative path", func(s *Settings) {
			s.Transport.Kind = "streaming"
			s.Transport.Port = 8080
			s.Transport.MountPath = "mcp"
		}, "transport.mount_path"},
		{"port out of range", func(s *Settings) { s.Transport.Port = 70000 }, "transport.port"},
		{"unknown driver", func(s *Settings) { s.Registry.Driver = "consul" }, "registry.driver"},
		{"nacos without endpoint", func(s *Settings) { s.Nacos.Endpoint = "" }, "nacos.endpoint"},
		{"nacos bad scheme", func(s *Settings) { s.Nacos.Endpoint = "ftp://nacos:8848" }, "nacos"},
		{"negative threshold", func(s *Settings) { s.Nacos.HeartbeatFailureThreshold = -1 }, "nacos.heartbeat_failure_threshold"},
		{"etcd without endpoints", func(s *Settings) {
			s.Registry.Driver = DriverEtcd
			s.Etcd.Endpoints = nil
		}, "etcd.endpoints"},
		{"bad log level", func(s *Settings) { s.Log.Level = "verbose" }, "log.level"},
		{"reserved metadata", func(s *Settings) { s.Service.Metadata = map[string]string{"transport": "x"} }, "service.metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			require.NoError(t, s.Validate())

			tt.mutate(s)
			err := s.Validate()

			var cfgErr *lifecycle.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.NotEmpty(t, cfgErr.Reason)
		})
	}
}

// TestLoadInvalidFile 测试加载阶段返回配置错误
func TestLoadInvalidFile(t *testing.T) {
	_, err := loadFile(t, "transport:\n  kind: stdio\n  port: 8080\n")
	var cfgErr *lifecycle.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "transport.port", cfgErr.Field)

	loader, err := config.New(config.WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)
	_, err = Load(context.Background(), loader)
	assert.Error(t, err)

	_, err = Load(context.Background(), nil)
	assert.Error(t, err)
}

// TestOpenRegistry 测试按驱动创建注册中心客户端
func TestOpenRegistry(t *testing.T) {
	ctx := context.Background()
	s := validSettings()

	s.Registry.Driver = DriverMemory
	reg, closeFn, err := OpenRegistry(ctx, s, clog.Discard(), nil)
	require.NoError(t, err)
	assert.IsType(t, &registry.Memory{}, reg)
	require.NoError(t, closeFn())

	s.Registry.Driver = DriverNacos
	reg, closeFn, err = OpenRegistry(ctx, s, clog.Discard(), nil)
	require.NoError(t, err)
	assert.NotNil(t, reg)
	require.NoError(t, closeFn())

	s.Registry.Driver = "consul"
	_, _, err = OpenRegistry(ctx, s, clog.Discard(), nil)
	assert.Error(t, err)
}

// levelRecorder 记录 SetLevel 调用
type levelRecorder struct {
	clog.Logger
	level atomic.Int64
}

func (l *levelRecorder) SetLevel(level clog.Level) error {
	l.level.Store(int64(level))
	return nil
}

// TestWatchLogLevel 测试修改配置文件后日志级别热更新
func TestWatchLogLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	loader, err := config.New(config.WithConfigFile(path))
	require.NoError(t, err)
	_, err = Load(context.Background(), loader)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := &levelRecorder{Logger: clog.Discard()}
	logger.level.Store(int64(clog.InfoLevel))
	require.NoError(t, Watch(ctx, loader, logger))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	require.Eventually(t, func() bool {
		return clog.Level(logger.level.Load()) == clog.DebugLevel
	}, 5*time.Second, 20*time.Millisecond)
}

// TestLoadOverrides 测试 overrides 在校验之前生效
func TestLoadOverrides(t *testing.T) {
	loader, err := config.New(config.WithConfigFile(writeConfig(t, "transport:\n  kind: streaming\n")))
	require.NoError(t, err)

	s, err := Load(context.Background(), loader, func(s *Settings) {
		s.Transport.Port = 8081
		s.Transport.MountPath = "/mcp"
	})
	require.NoError(t, err)
	assert.Equal(t, 8081, s.Transport.Port)
	assert.Equal(t, "/mcp", s.Transport.MountPath)
}
