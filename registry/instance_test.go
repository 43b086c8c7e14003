package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func streamingInstance() *ServiceInstance {
	return &ServiceInstance{
		ServiceName: "demo",
		Transport:   TransportStreaming,
		Host:        "127.0.0.1",
		Port:        intPtr(8080),
		Path:        strPtr("/mcp"),
	}
}

// TestServiceInstanceValidate 测试实例字段校验
func TestServiceInstanceValidate(t *testing.T) {
	tests := []struct {
		name    string
		inst    *ServiceInstance
		wantErr bool
	}{
		{"nil", nil, true},
		{"streaming", streamingInstance(), false},
		{"streaming without path", &ServiceInstance{ServiceName: "demo", Transport: TransportStreaming, Host: "h", Port: intPtr(1)}, false},
		{"streaming without port", &ServiceInstance{ServiceName: "demo", Transport: TransportStreaming, Host: "h"}, true},
		{"streaming port out of range", &ServiceInstance{ServiceName: "demo", Transport: TransportStreaming, Host: "h", Port: intPtr(70000)}, true},
		{"streaming relative path", &ServiceInstance{ServiceName: "demo", Transport: TransportStreaming, Host: "h", Port: intPtr(1), Path: strPtr("mcp")}, true},
		{"stdio", &ServiceInstance{ServiceName: "demo", Transport: TransportStdio, Host: "h"}, false},
		{"stdio with port", &ServiceInstance{ServiceName: "demo", Transport: TransportStdio, Host: "h", Port: intPtr(1)}, true},
		{"stdio with path", &ServiceInstance{ServiceName: "demo", Transport: TransportStdio, Host: "h", Path: strPtr("/mcp")}, true},
		{"missing name", &ServiceInstance{Transport: TransportStdio, Host: "h"}, true},
		{"missing host", &ServiceInstance{ServiceName: "demo", Transport: TransportStdio}, true},
		{"unknown transport", &ServiceInstance{ServiceName: "demo", Transport: "grpc", Host: "h"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inst.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidServiceInstance)
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestParseTransportKind 测试传输方式解析
func TestParseTransportKind(t *testing.T) {
	for in, want := range map[string]TransportKind{
		"stdio":      TransportStdio,
		" STDIO ":    TransportStdio,
		"streaming":  TransportStreaming,
		"streamable": TransportStreaming,
		"http":       TransportStreaming,
		"sse":        TransportStreaming,
	} {
		got, err := ParseTransportKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTransportKind("websocket")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

// TestServiceInstanceClone 测试深拷贝不共享指针与 map
func TestServiceInstanceClone(t *testing.T) {
	orig := streamingInstance()
	orig.Metadata = map[string]string{"team": "a"}

	c := orig.Clone()
	*c.Port = 9090
	*c.Path = "/other"
	c.Metadata["team"] = "b"

	assert.Equal(t, 8080, *orig.Port)
	assert.Equal(t, "/mcp", *orig.Path)
	assert.Equal(t, "a", orig.Metadata["team"])

	var nilInst *ServiceInstance
	assert.Nil(t, nilInst.Clone())
}

// TestPublishedMetadata 测试写入注册中心的元数据
func TestPublishedMetadata(t *testing.T) {
	inst := streamingInstance()
	inst.ID = "id-1"
	inst.Version = "1.2.0"
	inst.Metadata = map[string]string{"team": "a", MetadataProtocol: "overridden"}

	md := inst.PublishedMetadata()
	assert.Equal(t, "a", md["team"])
	assert.Equal(t, "streaming", md[MetadataTransport])
	assert.Equal(t, "mcp", md[MetadataProtocol])
	assert.Equal(t, "id-1", md[MetadataInstance])
	assert.Equal(t, "1.2.0", md[MetadataVersion])
	assert.Equal(t, "/mcp", md[MetadataPath])
	assert.Len(t, inst.Metadata, 2, "published metadata must not mutate the instance")

	stdio := &ServiceInstance{ServiceName: "demo", Transport: TransportStdio, Host: "h"}
	md = stdio.PublishedMetadata()
	assert.Equal(t, "stdio", md[MetadataTransport])
	assert.NotContains(t, md, MetadataPath)
	assert.NotContains(t, md, MetadataVersion)
}

// TestAddress 测试地址展示
func TestAddress(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", streamingInstance().Address())
	assert.Equal(t, "stdio://h", (&ServiceInstance{Host: "h"}).Address())
	assert.Equal(t, "[::1]:80", (&ServiceInstance{Host: "::1", Port: intPtr(80)}).Address())
	assert.Equal(t, "demo[streaming]@127.0.0.1:8080", streamingInstance().String())
}

// TestHandle 测试句柄访问器与后端校验
func TestHandle(t *testing.T) {
	inst := streamingInstance()
	inst.ID = "id-1"
	h := newHandle("nacos", inst, "key")

	assert.Equal(t, "id-1", h.ID())
	assert.Equal(t, "nacos", h.Backend())
	got := h.Instance()
	*got.Port = 1
	assert.Equal(t, 8080, *h.Instance().Port, "Instance returns a copy")

	key, err := handleKey[string](h, "nacos")
	require.NoError(t, err)
	assert.Equal(t, "key", key)

	_, err = handleKey[string](h, "etcd")
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = handleKey[int](h, "nacos")
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = handleKey[string](nil, "nacos")
	assert.ErrorIs(t, err, ErrInvalidHandle)

	var nilHandle *Handle
	assert.Empty(t, nilHandle.ID())
	assert.Nil(t, nilHandle.Instance())
}

// TestErrorCode 测试错误码映射
func TestErrorCode(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
	assert.Equal(t, xerrors.CodeLost, ErrorCode(xerrors.Wrap(ErrRegistrationLost, "beat")))
	assert.Equal(t, xerrors.CodeUnavailable, ErrorCode(xerrors.Mark(xerrors.New("dial"), ErrRegistryUnavailable)))
	assert.Equal(t, xerrors.CodeRejected, ErrorCode(xerrors.Mark(xerrors.New("400"), ErrRegistryRejected)))
	assert.Equal(t, xerrors.CodeRegistration, ErrorCode(xerrors.New("other")))
	assert.True(t, xerrors.Is(ErrRegistryUnavailable, xerrors.ErrUnavailable))
}
