// Package breaker 提供熔断器组件，用于隔离注册中心等远端依赖的持续故障。
//
// 基于 gobreaker 实现，按 key（例如 "nacos:register"）独立熔断：
//   - 闭合状态下统计失败率，超过阈值后打开
//   - 打开状态下直接返回 ErrOpenState，不再访问远端
//   - 超时后进入半开状态，放行少量请求探测恢复
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{
//		MaxRequests:     1,
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 5,
//	}, breaker.WithLogger(logger))
//
//	_, err := brk.Execute(ctx, "nacos:register", func() (any, error) {
//		return nil, client.Register(ctx, inst)
//	})
//
// 通过 WithFailurePredicate 可以指定哪些错误计入失败，
// 例如注册中心明确拒绝的请求不代表其不可用，不应触发熔断。
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的函数
	// key 为熔断维度，fn 返回的错误按失败判定规则计入统计
	Execute(ctx context.Context, key string, fn func() (any, error)) (any, error)

	// State 获取指定键的熔断器状态，未使用过的键视为闭合
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`

	// Interval 闭合状态下的统计周期（默认：0，不清空统计）
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Timeout 打开状态持续时间（默认：60s），超时后进入半开状态
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// FailureRatio 失败率阈值（默认：0.6）
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`

	// MinimumRequests 触发熔断的最小请求数（默认：10）
	MinimumRequests uint32 `json:"minimum_requests" yaml:"minimum_requests" mapstructure:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

// New 创建熔断器实例
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	opt := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, o := range opts {
		o(&opt)
	}

	c := *cfg
	c.setDefaults()

	return newBreaker(&c, opt)
}
