package transport

import (
	"strings"
	"time"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

// StreamableConfig Streamable HTTP 传输配置
type StreamableConfig struct {
	// ServiceName 用于 Span 与 HTTP 指标标签，默认 "nacos-mcp"
	ServiceName string `mapstructure:"service_name"`

	// Host 监听地址，默认 "0.0.0.0"
	Host string `mapstructure:"host"`

	// Port 监听端口，使用 WithListener 时可为 0
	Port int `mapstructure:"port"`

	// MountPath MCP handler 挂载路径，为空时处理所有未匹配的路由
	MountPath string `mapstructure:"mount_path"`

	// HealthPath 健康检查路径，默认 "/healthz"
	HealthPath string `mapstructure:"health_path"`

	// MetricsPath 非空时在同一端口暴露 Prometheus 指标
	MetricsPath string `mapstructure:"metrics_path"`

	// Stateless 为 true 时不维护 MCP 会话
	Stateless bool `mapstructure:"stateless"`

	// JSONResponse 为 true 时以 application/json 而不是 SSE 返回响应
	JSONResponse bool `mapstructure:"json_response"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"` // 默认 5s
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`    // 默认 5s
}

func (c *StreamableConfig) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "nacos-mcp"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.HealthPath == "" {
		c.HealthPath = "/healthz"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	c.MountPath = normalizePath(c.MountPath)
	c.MetricsPath = normalizePath(c.MetricsPath)
}

func (c *StreamableConfig) validate(hasListener bool) error {
	if c.Port < 0 || c.Port > 65535 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "port %d out of range", c.Port)
	}
	if c.Port == 0 && !hasListener {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "streamable transport requires a port")
	}
	if c.MountPath != "" && (c.MountPath == c.HealthPath || c.MountPath == c.MetricsPath) {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "mount path %q conflicts with a built-in route", c.MountPath)
	}
	return nil
}

// normalizePath 补全前导 "/" 并去掉末尾 "/"
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
