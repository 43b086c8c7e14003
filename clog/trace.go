package clog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	TraceIDKey = "trace_id"
	SpanIDKey  = "span_id"
)

// appendTraceFields 在 ctx 携带有效 Span 时追加 trace_id 与 span_id，
// 使注册中心调用的日志能与链路关联
func appendTraceFields(ctx context.Context, attrs []slog.Attr) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return attrs
	}
	return append(attrs,
		slog.String(TraceIDKey, sc.TraceID().String()),
		slog.String(SpanIDKey, sc.SpanID().String()),
	)
}
