package registry

import (
	"fmt"
	"maps"
	"net"
	"strconv"
	"strings"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

// TransportKind MCP 服务所使用的传输方式
type TransportKind string

const (
	// TransportStdio 基于标准输入输出的管道传输
	TransportStdio TransportKind = "stdio"
	// TransportStreaming 基于 HTTP 的流式传输
	TransportStreaming TransportKind = "streaming"
)

// Valid 判断传输方式是否为已知取值
func (k TransportKind) Valid() bool {
	return k == TransportStdio || k == TransportStreaming
}

func (k TransportKind) String() string {
	return string(k)
}

// ParseTransportKind 解析配置中的传输方式，"sse" 与 "http" 视为 streaming
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stdio":
		return TransportStdio, nil
	case "streaming", "streamable", "http", "sse":
		return TransportStreaming, nil
	default:
		return "", xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown transport kind %q", s)
	}
}

// 写入实例元数据的保留 key
const (
	MetadataTransport = "transport"
	MetadataProtocol  = "protocol"
	MetadataVersion   = "version"
	MetadataPath      = "path"
	MetadataInstance  = "instance_id"
)

// ServiceInstance 注册到注册中心的一个 MCP 服务实例
//
// Port 与 Path 仅在 Transport 为 streaming 时允许出现，且 streaming 实例必须有 Port。
// 实例创建后视为不可变，传递时使用 Clone。
type ServiceInstance struct {
	ID          string            `json:"id"`
	ServiceName string            `json:"service_name"`
	Transport   TransportKind     `json:"transport"`
	Host        string            `json:"host"`
	Port        *int              `json:"port,omitempty"`
	Path        *string           `json:"path,omitempty"`
	Version     string            `json:"version,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate 校验实例字段
func (s *ServiceInstance) Validate() error {
	if s == nil {
		return xerrors.Wrap(ErrInvalidServiceInstance, "instance is nil")
	}
	if strings.TrimSpace(s.ServiceName) == "" {
		return xerrors.Wrap(ErrInvalidServiceInstance, "service name is required")
	}
	if strings.TrimSpace(s.Host) == "" {
		return xerrors.Wrap(ErrInvalidServiceInstance, "host is required")
	}

	switch s.Transport {
	case TransportStdio:
		if s.Port != nil || s.Path != nil {
			return xerrors.Wrap(ErrInvalidServiceInstance, "stdio instance must not carry port or path")
		}
	case TransportStreaming:
		if s.Port == nil {
			return xerrors.Wrap(ErrInvalidServiceInstance, "streaming instance requires a port")
		}
		if *s.Port <= 0 || *s.Port > 65535 {
			return xerrors.Wrapf(ErrInvalidServiceInstance, "port %d out of range", *s.Port)
		}
		if s.Path != nil && !strings.HasPrefix(*s.Path, "/") {
			return xerrors.Wrapf(ErrInvalidServiceInstance, "path %q must start with /", *s.Path)
		}
	default:
		return xerrors.Wrapf(ErrInvalidServiceInstance, "unknown transport %q", s.Transport)
	}
	return nil
}

// Clone 深拷贝实例
func (s *ServiceInstance) Clone() *ServiceInstance {
	if s == nil {
		return nil
	}
	out := *s
	if s.Port != nil {
		port := *s.Port
		out.Port = &port
	}
	if s.Path != nil {
		path := *s.Path
		out.Path = &path
	}
	out.Metadata = maps.Clone(s.Metadata)
	return &out
}

// PortOrZero 返回端口，stdio 实例返回 0
func (s *ServiceInstance) PortOrZero() int {
	if s.Port == nil {
		return 0
	}
	return *s.Port
}

// Address 返回实例的可读地址，streaming 为 host:port，stdio 为 stdio://host
func (s *ServiceInstance) Address() string {
	if s.Port == nil {
		return "stdio://" + s.Host
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(*s.Port))
}

// PublishedMetadata 返回实际写入注册中心的元数据：用户元数据加上保留字段
func (s *ServiceInstance) PublishedMetadata() map[string]string {
	md := make(map[string]string, len(s.Metadata)+5)
	maps.Copy(md, s.Metadata)
	md[MetadataTransport] = s.Transport.String()
	md[MetadataProtocol] = "mcp"
	if s.ID != "" {
		md[MetadataInstance] = s.ID
	}
	if s.Version != "" {
		md[MetadataVersion] = s.Version
	}
	if s.Path != nil {
		md[MetadataPath] = *s.Path
	}
	return md
}

func (s *ServiceInstance) String() string {
	return fmt.Sprintf("%s[%s]@%s", s.ServiceName, s.Transport, s.Address())
}

// Handle 一次成功注册的凭证，由 Register 创建，只能交给同一个 Registry 使用
type Handle struct {
	id       string
	backend  string
	instance *ServiceInstance
	key      any
}

func newHandle(backend string, instance *ServiceInstance, key any) *Handle {
	return &Handle{
		id:       instance.ID,
		backend:  backend,
		instance: instance.Clone(),
		key:      key,
	}
}

// ID 返回实例 ID
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Backend 返回创建该句柄的后端名称
func (h *Handle) Backend() string {
	if h == nil {
		return ""
	}
	return h.backend
}

// Instance 返回注册时的实例副本
func (h *Handle) Instance() *ServiceInstance {
	if h == nil {
		return nil
	}
	return h.instance.Clone()
}

// handleKey 取出后端私有的 key，类型不符时返回 ErrInvalidHandle
func handleKey[T any](h *Handle, backend string) (T, error) {
	var zero T
	if h == nil || h.backend != backend {
		return zero, ErrInvalidHandle
	}
	key, ok := h.key.(T)
	if !ok {
		return zero, ErrInvalidHandle
	}
	return key, nil
}
