package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用开发环境默认配置
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// NewDevDefaultConfig 返回开发环境的默认配置：debug 级别、console 格式、输出到 stderr
//
// 输出到 stderr 是因为 stdio 传输模式下 stdout 被 MCP 协议占用。
func NewDevDefaultConfig() *Config {
	return &Config{
		Level:     "debug",
		Format:    "console",
		Output:    "stderr",
		AddSource: true,
	}
}

// NewProdDefaultConfig 返回生产环境的默认配置：info 级别、json 格式、输出到 stderr
func NewProdDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}
