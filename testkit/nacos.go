package testkit

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NacosImage 集成测试使用的 Nacos 镜像
const NacosImage = "nacos/nacos-server:v2.4.3"

// NacosEndpoint 容器映射出的 Nacos 地址
//
// 映射端口不满足 gRPC 端口 = HTTP 端口 + 1000，客户端需显式设置 GrpcPort。
type NacosEndpoint struct {
	Addr     string // HTTP "host:port"
	GrpcPort uint64
}

// NewNacosEndpoint 使用 testcontainers 启动单机模式 Nacos
// 生命周期由 t.Cleanup 管理
func NewNacosEndpoint(t *testing.T) NacosEndpoint {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        NacosImage,
		ExposedPorts: []string{"8848/tcp", "9848/tcp"},
		Env: map[string]string{
			"MODE":                            "standalone",
			"NACOS_AUTH_ENABLE":               "false",
			"PREFER_HOST_MODE":                "ip",
			"JVM_XMS":                         "256m",
			"JVM_XMX":                         "256m",
			"NACOS_AUTH_IDENTITY_KEY":         "nacos-mcp",
			"NACOS_AUTH_IDENTITY_VALUE":       "nacos-mcp",
			"NACOS_AUTH_TOKEN":                "U2VjcmV0S2V5MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5",
			"NACOS_AUTH_TOKEN_EXPIRE_SECONDS": "18000",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8848/tcp"),
			wait.ForListeningPort("9848/tcp"),
			wait.ForHTTP("/nacos/v1/console/health/readiness").
				WithPort("8848/tcp").
				WithStartupTimeout(180*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start nacos container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "8848")
	require.NoError(t, err)

	grpcPort, err := container.MappedPort(ctx, "9848")
	require.NoError(t, err)
	grpc, err := strconv.ParseUint(grpcPort.Port(), 10, 16)
	require.NoError(t, err)

	return NacosEndpoint{
		Addr:     fmt.Sprintf("%s:%s", host, port.Port()),
		GrpcPort: grpc,
	}
}
