// Package settings 定义 nacos-mcp 的完整配置，并负责加载、校验与热更新。
//
// 配置来源由 config 包提供（YAML 文件、.env、NACOS_MCP_ 前缀的环境变量），
// 所有 key 都注册了默认值，因此任何 key 都可以只通过环境变量覆盖，例如
// NACOS_MCP_TRANSPORT_KIND=streaming、NACOS_MCP_NACOS_ENDPOINT=nacos:8848。
//
// 校验失败统一返回 *lifecycle.ConfigurationError，在任何网络调用之前终止启动。
package settings

import (
	"maps"
	"strings"
	"time"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/connector"
	"github.com/ceyewan/nacos-mcp/lifecycle"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/trace"
	"github.com/ceyewan/nacos-mcp/transport"
)

// 注册中心驱动
const (
	DriverNacos  = "nacos"
	DriverEtcd   = "etcd"
	DriverMemory = "memory"
)

// Settings 进程配置
type Settings struct {
	Service   ServiceSettings   `mapstructure:"service"`
	Transport TransportSettings `mapstructure:"transport"`
	Registry  RegistrySettings  `mapstructure:"registry"`
	Nacos     NacosSettings     `mapstructure:"nacos"`
	Etcd      EtcdSettings      `mapstructure:"etcd"`
	Log       clog.Config       `mapstructure:"log"`
	Metrics   metrics.Config    `mapstructure:"metrics"`
	Trace     trace.Config      `mapstructure:"trace"`
}

// ServiceSettings 注册到注册中心的服务信息
type ServiceSettings struct {
	Name           string            `mapstructure:"name" validate:"required"`
	Version        string            `mapstructure:"version"`
	AdvertisedHost string            `mapstructure:"advertised_host" validate:"omitempty,hostname_rfc1123|ip"`
	InstanceID     string            `mapstructure:"instance_id"`
	Metadata       map[string]string `mapstructure:"metadata"`
}

// TransportSettings 传输方式；stdio 不接受任何网络参数
type TransportSettings struct {
	Kind            string        `mapstructure:"kind" validate:"required"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	MountPath       string        `mapstructure:"mount_path"`
	HealthPath      string        `mapstructure:"health_path"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	Stateless       bool          `mapstructure:"stateless"`
	JSONResponse    bool          `mapstructure:"json_response"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// RegistrySettings 注册中心驱动选择
type RegistrySettings struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=nacos etcd memory"`
}

// NacosSettings Nacos 连接与注册行为
//
// 心跳、重试与注销超时对所有驱动生效，沿用 nacos 前缀。
type NacosSettings struct {
	Endpoint    string  `mapstructure:"endpoint"`
	GrpcPort    uint64  `mapstructure:"grpc_port"`
	CacheDir    string  `mapstructure:"cache_dir"`
	Namespace   string  `mapstructure:"namespace"`
	Group       string  `mapstructure:"group"`
	ClusterName string  `mapstructure:"cluster_name"`
	Username    string  `mapstructure:"username"`
	Password    string  `mapstructure:"password"`
	Weight      float64 `mapstructure:"weight" validate:"gte=0"`

	HealthCheckIntervalSeconds int           `mapstructure:"health_check_interval_seconds" validate:"gte=0"`
	HeartbeatFailureThreshold  int           `mapstructure:"heartbeat_failure_threshold" validate:"gte=0"`
	RegisterAttempts           int           `mapstructure:"register_attempts" validate:"gte=0"`
	DeregisterTimeout          time.Duration `mapstructure:"deregister_timeout" validate:"gte=0"`
	RequestTimeout             time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	ReregisterInterval         time.Duration `mapstructure:"reregister_interval" validate:"gte=0"`
}

// EtcdSettings Etcd 驱动
type EtcdSettings struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`
	Namespace   string        `mapstructure:"namespace"`
	TTL         time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// TransportKind 返回规范化后的传输方式，Normalize 之后调用
func (s *Settings) TransportKind() registry.TransportKind {
	return registry.TransportKind(s.Transport.Kind)
}

// Normalize 规范化字段
//
// stdio 模式下 stdout 承载协议，日志输出强制改为 stderr。
func (s *Settings) Normalize() {
	s.Service.Name = strings.TrimSpace(s.Service.Name)
	s.Service.AdvertisedHost = strings.TrimSpace(s.Service.AdvertisedHost)
	s.Transport.Host = strings.TrimSpace(s.Transport.Host)
	s.Transport.MountPath = strings.TrimSpace(s.Transport.MountPath)
	s.Registry.Driver = strings.ToLower(strings.TrimSpace(s.Registry.Driver))

	if kind, err := registry.ParseTransportKind(s.Transport.Kind); err == nil {
		s.Transport.Kind = kind.String()
	}
	if s.TransportKind() == registry.TransportStdio {
		if out := strings.ToLower(s.Log.Output); out == "" || out == "stdout" {
			s.Log.Output = "stderr"
		}
	}
	if s.Metrics.ServiceName == "" {
		s.Metrics.ServiceName = s.Service.Name
	}
	if s.Metrics.Version == "" {
		s.Metrics.Version = s.Service.Version
	}
	if s.Trace.ServiceName == "" {
		s.Trace.ServiceName = s.Service.Name
	}
}

// LifecycleConfig 转换为 lifecycle.Config
func (s *Settings) LifecycleConfig() *lifecycle.Config {
	return &lifecycle.Config{
		ServiceName:        s.Service.Name,
		InstanceID:         s.Service.InstanceID,
		Version:            s.Service.Version,
		AdvertisedHost:     s.Service.AdvertisedHost,
		Metadata:           maps.Clone(s.Service.Metadata),
		RegisterAttempts:   s.Nacos.RegisterAttempts,
		DeregisterTimeout:  s.Nacos.DeregisterTimeout,
		ReregisterInterval: s.Nacos.ReregisterInterval,
		ReregisterTimeout:  s.Nacos.RequestTimeout,
		Heartbeat: registry.HeartbeatConfig{
			Interval:         time.Duration(s.Nacos.HealthCheckIntervalSeconds) * time.Second,
			FailureThreshold: s.Nacos.HeartbeatFailureThreshold,
		},
	}
}

// StreamableConfig 转换为 transport.StreamableConfig
func (s *Settings) StreamableConfig() *transport.StreamableConfig {
	return &transport.StreamableConfig{
		ServiceName:     s.Service.Name,
		Host:            s.Transport.Host,
		Port:            s.Transport.Port,
		MountPath:       s.Transport.MountPath,
		HealthPath:      s.Transport.HealthPath,
		MetricsPath:     s.Transport.MetricsPath,
		Stateless:       s.Transport.Stateless,
		JSONResponse:    s.Transport.JSONResponse,
		ShutdownTimeout: s.Transport.ShutdownTimeout,
	}
}

// NacosConfig 转换为 registry.NacosConfig
func (s *Settings) NacosConfig() *registry.NacosConfig {
	return &registry.NacosConfig{
		Endpoint:       s.Nacos.Endpoint,
		GrpcPort:       s.Nacos.GrpcPort,
		CacheDir:       s.Nacos.CacheDir,
		Namespace:      s.Nacos.Namespace,
		Group:          s.Nacos.Group,
		ClusterName:    s.Nacos.ClusterName,
		Username:       s.Nacos.Username,
		Password:       s.Nacos.Password,
		Weight:         s.Nacos.Weight,
		RequestTimeout: s.Nacos.RequestTimeout,
	}
}

// EtcdConnectorConfig 转换为 connector.EtcdConfig
func (s *Settings) EtcdConnectorConfig() *connector.EtcdConfig {
	return &connector.EtcdConfig{
		Name:        "registry",
		Endpoints:   append([]string(nil), s.Etcd.Endpoints...),
		Username:    s.Etcd.Username,
		Password:    s.Etcd.Password,
		DialTimeout: s.Etcd.DialTimeout,
	}
}

// EtcdRegistryConfig 转换为 registry.EtcdConfig
func (s *Settings) EtcdRegistryConfig() *registry.EtcdConfig {
	return &registry.EtcdConfig{
		Namespace: s.Etcd.Namespace,
		TTL:       s.Etcd.TTL,
	}
}
