// Package clog 为 nacos-mcp 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 层级命名空间：每个组件通过 WithNamespace 追加自己的模块名
//   - 支持从 Context 中提取字段（如 session_id）
//   - 运行时动态调整级别（配合 config 热更新）
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	})
//	logger.Info("instance registered", clog.String("service", "demo"))
//
// 注意：stdio 传输模式下 stdout 承载 MCP 协议消息，日志必须输出到 stderr 或文件。
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 创建子 Logger：
//
//	childLogger := logger.With(clog.String("instance_id", id))
//	namespacedLogger := logger.WithNamespace("registry", "nacos")
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会额外提取通过 WithContextField 配置的字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger，
	// 命名空间以 "." 连接，例如 "nacos-mcp.registry.heartbeat"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对共享同一 handler 的所有子 Logger 生效
	SetLevel(level Level) error

	// Flush 强制同步所有缓冲区的日志
	Flush()
}
