package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/nacos-mcp/connector"
)

// NewEtcdContainerConfig 使用 testcontainers 创建 Etcd 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{fmt.Sprintf("%s:%s", host, mappedPort.Port())},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdConnector 获取已连接的 Etcd 连接器（基于 testcontainers）
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(NewEtcdContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")

	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
