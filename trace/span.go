package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName 组件默认的 instrumentation 名称
const tracerName = "github.com/ceyewan/nacos-mcp"

// RegistryMeta 描述一次注册中心调用
type RegistryMeta struct {
	Backend     string
	Operation   string
	ServiceName string
	InstanceID  string
}

func normalizeContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeTracer(tracer oteltrace.Tracer) oteltrace.Tracer {
	if tracer == nil {
		return otel.Tracer(tracerName)
	}
	return tracer
}

func registryAttributes(meta RegistryMeta, attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+4)
	if meta.Backend != "" {
		out = append(out, attribute.String(AttrRegistryBackend, meta.Backend))
	}
	if meta.Operation != "" {
		out = append(out, attribute.String(AttrRegistryOperation, meta.Operation))
	}
	if meta.ServiceName != "" {
		out = append(out, attribute.String(AttrServiceName, meta.ServiceName))
	}
	if meta.InstanceID != "" {
		out = append(out, attribute.String(AttrInstanceID, meta.InstanceID))
	}
	return append(out, attrs...)
}

// StartRegistrySpan 启动一个客户端 Span，tracer 为 nil 时使用全局 TracerProvider
func StartRegistrySpan(
	ctx context.Context,
	tracer oteltrace.Tracer,
	meta RegistryMeta,
	attrs ...attribute.KeyValue,
) (context.Context, oteltrace.Span) {
	ctx = normalizeContext(ctx)
	tracer = normalizeTracer(tracer)

	spanCtx, span := tracer.Start(ctx, SpanNameRegistry(meta.Operation), oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	span.SetAttributes(registryAttributes(meta, attrs...)...)
	return spanCtx, span
}

// MarkSpanError 记录并将 Span 标记为错误，当 err 不为 nil 时
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Inject 将 ctx 中的追踪上下文写入 carrier
func Inject(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(normalizeContext(ctx), propagation.MapCarrier(carrier))
}

// Extract 从 carrier 中恢复追踪上下文
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(normalizeContext(ctx), propagation.MapCarrier(carrier))
}
