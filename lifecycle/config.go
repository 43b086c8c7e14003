package lifecycle

import (
	"maps"
	"strings"
	"time"

	"github.com/ceyewan/nacos-mcp/registry"
)

// Config Bridge 配置
type Config struct {
	// ServiceName 注册到注册中心的服务名，必填
	ServiceName string `mapstructure:"service_name"`

	// InstanceID 实例 ID，为空时由注册中心客户端生成，重新注册沿用首次的 ID
	InstanceID string `mapstructure:"instance_id"`

	// Version 服务版本，写入实例元数据
	Version string `mapstructure:"version"`

	// AdvertisedHost 对外公布的地址；为空时使用具体的监听地址，监听通配地址时探测本机 IPv4
	AdvertisedHost string `mapstructure:"advertised_host"`

	// Metadata 附加的实例元数据
	Metadata map[string]string `mapstructure:"metadata"`

	// RegisterAttempts 初始注册在注册中心不可用时的最大尝试次数，默认 3
	RegisterAttempts int `mapstructure:"register_attempts"`

	// RegisterBackoff 初始注册重试的起始退避，默认 500ms
	RegisterBackoff time.Duration `mapstructure:"register_backoff"`

	// DeregisterTimeout 注销的超时预算，默认 3s
	DeregisterTimeout time.Duration `mapstructure:"deregister_timeout"`

	// ReregisterInterval 两次重新注册尝试之间的最小间隔，默认 1s
	ReregisterInterval time.Duration `mapstructure:"reregister_interval"`

	// ReregisterTimeout 单次重新注册请求的超时，不受传输退出影响，默认 5s
	ReregisterTimeout time.Duration `mapstructure:"reregister_timeout"`

	// Heartbeat 心跳配置
	Heartbeat registry.HeartbeatConfig `mapstructure:"heartbeat"`

	// DisableHeartbeat 为 true 时不启动心跳监视器
	DisableHeartbeat bool `mapstructure:"disable_heartbeat"`
}

func (c *Config) setDefaults() {
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	c.AdvertisedHost = strings.TrimSpace(c.AdvertisedHost)
	if c.RegisterAttempts <= 0 {
		c.RegisterAttempts = 3
	}
	if c.RegisterBackoff <= 0 {
		c.RegisterBackoff = 500 * time.Millisecond
	}
	if c.DeregisterTimeout <= 0 {
		c.DeregisterTimeout = 3 * time.Second
	}
	if c.ReregisterInterval <= 0 {
		c.ReregisterInterval = time.Second
	}
	if c.ReregisterTimeout <= 0 {
		c.ReregisterTimeout = 5 * time.Second
	}
	c.Metadata = maps.Clone(c.Metadata)
}

func (c *Config) validate() error {
	if c.ServiceName == "" {
		return configError("service.name", "service name is required")
	}
	for k := range c.Metadata {
		switch k {
		case registry.MetadataTransport, registry.MetadataProtocol, registry.MetadataInstance:
			return configError("service.metadata", "key %q is reserved", k)
		}
	}
	return nil
}
