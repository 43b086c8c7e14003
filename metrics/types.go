// Package metrics 为 nacos-mcp 提供统一的指标收集能力。
// 基于 OpenTelemetry 构建，通过 Prometheus exporter 暴露 Counter、Gauge、Histogram 指标。
//
// 快速开始：
//
//	meter, err := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "nacos-mcp",
//	    Port:        9090,
//	    Path:        "/metrics",
//	})
//	if err != nil {
//	    return err
//	}
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("nacos_mcp_registry_requests_total", "Nacos 请求总数")
//	counter.Inc(ctx, metrics.L("op", "register"), metrics.L("result", "ok"))
//
// Enabled 为 false 或使用 Discard() 时，所有指标操作都是空操作。
package metrics

import "context"

// Counter 单调递增的计数器，例如注册请求数、重注册次数
type Counter interface {
	// Inc 加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 加 val，负数会被后端忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增可减的瞬时值，例如生命周期状态、活跃连接数
//
//	gauge, _ := meter.Gauge("nacos_mcp_lifecycle_state", "当前注册状态")
//	gauge.Set(ctx, 2, metrics.L("service", "demo"))
type Gauge interface {
	// Set 覆盖当前值
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 记录值的分布，例如注册中心请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂
//
// 创建出的指标可在多个 goroutine 中并发使用。
// 指标名需符合 Prometheus 命名规范，opts 支持 WithUnit 与 WithBuckets。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 刷新并关闭，之后的记录被丢弃，同时停止独立的指标 HTTP 服务
	Shutdown(ctx context.Context) error
}

// MetricOption 创建指标时的可选配置
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit UCUM 单位代码，例如 "s"、"By"
	Unit string

	// Buckets 直方图桶边界，仅对 Histogram 生效
	Buckets []float64
}

// WithUnit 设置指标单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图的桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}
