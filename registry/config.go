package registry

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"

	"github.com/ceyewan/nacos-mcp/breaker"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// NacosConfig Nacos 后端配置
type NacosConfig struct {
	// Endpoint Nacos 地址，支持 "host:port" 或 "http(s)://host:port[/context]"
	// 省略端口时为 8848，省略路径时为 /nacos
	Endpoint string `mapstructure:"endpoint" validate:"required"`

	// GrpcPort Nacos gRPC 端口，为 0 时由 SDK 取 HTTP 端口 + 1000
	GrpcPort uint64 `mapstructure:"grpc_port"`

	// Namespace 命名空间 ID，默认 "public"
	Namespace string `mapstructure:"namespace"`

	// Group 服务分组，默认 "DEFAULT_GROUP"
	Group string `mapstructure:"group"`

	// ClusterName 集群名，默认 "DEFAULT"
	ClusterName string `mapstructure:"cluster_name"`

	// Username/Password 开启鉴权时由 SDK 登录换取 accessToken
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Weight 实例权重，默认 1.0
	Weight float64 `mapstructure:"weight"`

	// RequestTimeout 单次 SDK 调用超时，默认 5s
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// CacheDir SDK 的服务缓存与日志目录，默认 $TMPDIR/nacos-mcp
	CacheDir string `mapstructure:"cache_dir"`

	// Breaker 熔断配置，为 nil 时使用默认值
	Breaker *breaker.Config `mapstructure:"breaker"`
}

func (c *NacosConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "public"
	}
	if c.Group == "" {
		c.Group = "DEFAULT_GROUP"
	}
	if c.ClusterName == "" {
		c.ClusterName = "DEFAULT"
	}
	if c.Weight <= 0 {
		c.Weight = 1.0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(os.TempDir(), "nacos-mcp")
	}
	if c.Breaker == nil {
		c.Breaker = &breaker.Config{
			MaxRequests:     1,
			Timeout:         10 * time.Second,
			FailureRatio:    0.6,
			MinimumRequests: 5,
		}
	}
}

// serverConfig 解析 Endpoint，缺省 scheme 时使用 http
func (c *NacosConfig) serverConfig() (constant.ServerConfig, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return constant.ServerConfig{}, xerrors.Wrap(xerrors.ErrInvalidInput, "nacos endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return constant.ServerConfig{}, xerrors.Wrapf(xerrors.ErrInvalidInput, "invalid nacos endpoint %q", c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return constant.ServerConfig{}, xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported nacos endpoint scheme %q", u.Scheme)
	}

	port := uint64(8848)
	if p := u.Port(); p != "" {
		port, err = strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return constant.ServerConfig{}, xerrors.Wrapf(xerrors.ErrInvalidInput, "invalid nacos port %q", p)
		}
	}
	contextPath := strings.TrimRight(u.Path, "/")
	if contextPath == "" {
		contextPath = "/nacos"
	}

	return constant.ServerConfig{
		Scheme:      u.Scheme,
		ContextPath: contextPath,
		IpAddr:      u.Hostname(),
		Port:        port,
		GrpcPort:    c.GrpcPort,
	}, nil
}

// clientConfig SDK 客户端配置，SDK 以空值表示 public 命名空间
func (c *NacosConfig) clientConfig() constant.ClientConfig {
	namespace := c.Namespace
	if namespace == "public" {
		namespace = ""
	}
	return constant.ClientConfig{
		NamespaceId:         namespace,
		TimeoutMs:           uint64(c.RequestTimeout.Milliseconds()),
		NotLoadCacheAtStart: true,
		CacheDir:            filepath.Join(c.CacheDir, "cache"),
		LogDir:              filepath.Join(c.CacheDir, "log"),
		LogLevel:            "warn",
		Username:            c.Username,
		Password:            c.Password,
	}
}

// EtcdConfig Etcd 后端配置
type EtcdConfig struct {
	// Namespace Etcd key 前缀，默认 "/nacos-mcp/services"
	Namespace string `mapstructure:"namespace"`

	// TTL 租约时长，默认 30s，心跳间隔应明显小于它
	TTL time.Duration `mapstructure:"ttl"`
}

func (c *EtcdConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/nacos-mcp/services"
	}
	c.Namespace = strings.TrimRight(c.Namespace, "/")
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	if c.TTL < time.Second {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "etcd lease ttl %s is shorter than 1s", c.TTL)
	}
	return nil
}
