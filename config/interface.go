// Package config 为 nacos-mcp 提供统一的配置加载能力，基于 Viper 实现。
//
// 特性：
//   - 多源配置加载：YAML/JSON 文件、环境变量、.env 文件
//   - 配置优先级：环境变量 > .env > 环境特定配置 > 基础配置 > 默认值
//   - 热更新支持：监听配置文件变化，按 key 通知订阅者
//
// 基本使用：
//
//	loader, _ := config.New(
//		config.WithConfigName("nacos-mcp"),
//		config.WithEnvPrefix("NACOS_MCP"),
//	)
//	loader.SetDefault("transport.kind", "stdio")
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var s settings.Settings
//	_ = loader.Unmarshal(&s)
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		logger.Info("config changed", clog.String("key", event.Key))
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// SetDefault 设置默认值
	// 只有注册过默认值（或出现在配置文件中）的 key 才会在 Unmarshal 时读取环境变量
	SetDefault(key string, value any)

	// Load 加载配置并启动文件监听
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（使用 mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 检查 WithRequiredKeys 声明的 key 是否都已配置
	Validate() error

	// ConfigFileUsed 返回实际加载的配置文件路径，未加载文件时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string // 配置 key
	Value     any    // 新值
	OldValue  any    // 旧值
	Source    string // "file"
	Timestamp time.Time
}
