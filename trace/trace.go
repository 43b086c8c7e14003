// Package trace 初始化 OpenTelemetry 链路追踪，并提供注册中心调用与 HTTP 的 Span 工具。
//
// 进程启动时调用一次 Init（或 Discard）设置全局 TracerProvider，
// 之后 GinMiddleware、GRPCDialOption 与 StartRegistrySpan 都通过全局 Provider 上报。
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

const exportTimeout = 5 * time.Second

// Init 按配置安装全局 TracerProvider，返回的函数在退出时刷新剩余 Span
//
// cfg.Enabled 为 false 时等价于 Discard。
func Init(cfg *Config) (func(context.Context) error, error) {
	if cfg != nil && !cfg.Enabled {
		return Discard(cfg.ServiceName)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create otlp exporter")
	}

	var export sdktrace.TracerProviderOption
	if cfg.Batcher == "simple" {
		export = sdktrace.WithSyncer(exporter)
	} else {
		export = sdktrace.WithBatcher(exporter)
	}
	return install(cfg.ServiceName, cfg.Sampler, export)
}

// Discard 安装不导出的 TracerProvider，只生成 TraceID 供日志关联
func Discard(serviceName string) (func(context.Context) error, error) {
	return install(serviceName, 1.0)
}

func install(serviceName string, ratio float64, extra ...sdktrace.TracerProviderOption) (func(context.Context) error, error) {
	var resOpts []resource.Option
	if serviceName != "" {
		resOpts = append(resOpts, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	}
	res, err := resource.New(context.Background(), resOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create resource")
	}

	opts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}, extra...)
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func validateConfig(cfg *Config) error {
	switch {
	case cfg == nil:
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace config is required")
	case cfg.ServiceName == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace service_name is required")
	case cfg.Endpoint == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace endpoint is required")
	case cfg.Sampler < 0 || cfg.Sampler > 1:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace sampler must be between 0 and 1, got %v", cfg.Sampler)
	case cfg.Batcher != "" && cfg.Batcher != "batch" && cfg.Batcher != "simple":
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace batcher must be \"batch\" or \"simple\", got %q", cfg.Batcher)
	}
	return nil
}
