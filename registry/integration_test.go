//go:build integration

package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nacos-mcp/testkit"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// TestEtcdRegistryIntegration 测试 Etcd 后端的完整生命周期
func TestEtcdRegistryIntegration(t *testing.T) {
	conn := testkit.NewEtcdConnector(t)
	ctx := testkit.NewContext(t, time.Minute)

	reg, err := NewEtcd(conn, &EtcdConfig{Namespace: "/test/" + testkit.NewID(), TTL: 5 * time.Second},
		WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter()))
	require.NoError(t, err)
	defer reg.Close()

	inst := streamingInstance()
	inst.ID = "inst-" + testkit.NewID()
	h, err := reg.Register(ctx, inst)
	require.NoError(t, err)

	key, err := handleKey[etcdKey](h, backendEtcd)
	require.NoError(t, err)
	resp, err := conn.GetClient().Get(ctx, key.Key)
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)

	var stored ServiceInstance
	require.NoError(t, json.Unmarshal(resp.Kvs[0].Value, &stored))
	assert.Equal(t, "demo", stored.ServiceName)
	assert.Equal(t, "streaming", stored.Metadata[MetadataTransport])

	require.NoError(t, reg.Heartbeat(ctx, h))

	// 重复注册替换租约，条目数量不变
	h2, err := reg.Register(ctx, inst)
	require.NoError(t, err)
	resp, err = conn.GetClient().Get(ctx, key.Key)
	require.NoError(t, err)
	assert.Len(t, resp.Kvs, 1)

	require.NoError(t, reg.Deregister(ctx, h2))
	require.NoError(t, reg.Deregister(ctx, h2), "deregistering twice succeeds")

	resp, err = conn.GetClient().Get(ctx, key.Key)
	require.NoError(t, err)
	assert.Empty(t, resp.Kvs)

	assert.ErrorIs(t, reg.Heartbeat(ctx, h2), ErrRegistrationLost)
}

// TestNacosRegistryIntegration 测试真实 Nacos 上的注册、心跳与注销
func TestNacosRegistryIntegration(t *testing.T) {
	endpoint := testkit.NewNacosEndpoint(t)
	ctx := testkit.NewContext(t, 2*time.Minute)

	reg, err := NewNacos(&NacosConfig{Endpoint: endpoint.Addr, GrpcPort: endpoint.GrpcPort, CacheDir: t.TempDir()},
		WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter()))
	require.NoError(t, err)
	defer reg.Close()

	service := "mcp-" + testkit.NewID()
	inst := streamingInstance()
	inst.ServiceName = service

	h, err := reg.Register(ctx, inst)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(listNacosInstances(t, endpoint.Addr, service)) == 1
	}, 10*time.Second, 200*time.Millisecond)

	hosts := listNacosInstances(t, endpoint.Addr, service)
	assert.Equal(t, "127.0.0.1", hosts[0].IP)
	assert.Equal(t, 8080, hosts[0].Port)
	assert.Equal(t, "/mcp", hosts[0].Metadata[MetadataPath])

	require.NoError(t, reg.Heartbeat(ctx, h))

	require.NoError(t, reg.Deregister(ctx, h))
	require.Eventually(t, func() bool {
		return xerrors.Is(reg.Heartbeat(ctx, h), ErrRegistrationLost)
	}, 10*time.Second, 200*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(listNacosInstances(t, endpoint.Addr, service)) == 0
	}, 10*time.Second, 200*time.Millisecond)

	require.NoError(t, reg.Deregister(ctx, h))
}

type nacosHost struct {
	IP       string            `json:"ip"`
	Port     int               `json:"port"`
	Metadata map[string]string `json:"metadata"`
}

func listNacosInstances(t *testing.T, endpoint, service string) []nacosHost {
	t.Helper()
	q := url.Values{"serviceName": {service}, "healthyOnly": {"false"}}
	resp, err := http.Get("http://" + endpoint + "/nacos/v1/ns/instance/list?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Hosts []nacosHost `json:"hosts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Hosts
}
