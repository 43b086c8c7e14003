package registry

import (
	"context"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/trace"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// 指标名称
const (
	MetricRequestsTotal     = "nacos_mcp_registry_requests_total"
	MetricRequestDuration   = "nacos_mcp_registry_request_duration_seconds"
	MetricHeartbeatFailures = "nacos_mcp_heartbeat_failures_total"
)

// 操作标签
const (
	opConnect    = "connect"
	opRegister   = "register"
	opDeregister = "deregister"
	opHeartbeat  = "heartbeat"
)

type requestMetrics struct {
	backend  string
	total    metrics.Counter
	duration metrics.Histogram
}

func newRequestMetrics(m metrics.Meter, backend string) (*requestMetrics, error) {
	total, err := m.Counter(MetricRequestsTotal, "Registry requests by operation and result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create registry request counter")
	}
	duration, err := m.Histogram(MetricRequestDuration, "Registry request latency.",
		metrics.WithUnit("s"),
		metrics.WithBuckets([]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}))
	if err != nil {
		return nil, xerrors.Wrap(err, "create registry duration histogram")
	}
	return &requestMetrics{backend: backend, total: total, duration: duration}, nil
}

func (m *requestMetrics) observe(ctx context.Context, op string, start time.Time, err error) {
	m.total.Inc(ctx,
		metrics.L("backend", m.backend),
		metrics.L("op", op),
		metrics.L("result", resultOf(err)))
	m.duration.Record(ctx, time.Since(start).Seconds(),
		metrics.L("backend", m.backend),
		metrics.L("op", op))
}

// startSpan 为一次注册中心操作创建客户端 Span
func startSpan(ctx context.Context, backend, op string, inst *ServiceInstance) (context.Context, oteltrace.Span) {
	meta := trace.RegistryMeta{Backend: backend, Operation: op}
	if inst != nil {
		meta.ServiceName = inst.ServiceName
		meta.InstanceID = inst.ID
	}
	return trace.StartRegistrySpan(ctx, nil, meta)
}

func endSpan(span oteltrace.Span, err error) {
	trace.MarkSpanError(span, err)
	span.End()
}
