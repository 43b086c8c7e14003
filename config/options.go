package config

import (
	"strings"

	"github.com/ceyewan/nacos-mcp/clog"
)

// Option 配置选项模式
type Option func(*options)

// options 加载器选项
type options struct {
	name         string   // 配置文件名称（不含扩展名）
	file         string   // 显式指定的配置文件路径，优先于 name/paths
	paths        []string // 配置文件搜索路径
	fileType     string   // 配置文件类型 (yaml, json, etc.)
	envPrefix    string   // 环境变量前缀
	requiredKeys []string
	logger       clog.Logger
}

// defaultOptions 返回默认选项
func defaultOptions() *options {
	return &options{
		name:      "nacos-mcp",
		paths:     []string{".", "./config"},
		fileType:  "yaml",
		envPrefix: "NACOS_MCP",
		logger:    clog.Discard(),
	}
}

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithConfigFile 显式指定配置文件路径，文件不存在时 Load 返回错误
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(o *options) {
		o.paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, etc.)
func WithConfigType(typ string) Option {
	return func(o *options) {
		o.fileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀，自动转为大写
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = strings.ToUpper(prefix)
	}
}

// WithRequiredKeys 声明必须存在的配置 key，由 Validate 检查
func WithRequiredKeys(keys ...string) Option {
	return func(o *options) {
		o.requiredKeys = append(o.requiredKeys, keys...)
	}
}

// WithLogger 注入日志记录器，内部追加 "config" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}
