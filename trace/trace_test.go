package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

func setupTracerForTest(t *testing.T) (oteltrace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Tracer("test"), recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestValidateConfig(t *testing.T) {
	assert.ErrorIs(t, validateConfig(nil), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, validateConfig(&Config{Endpoint: "x:4317"}), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, validateConfig(&Config{ServiceName: "svc"}), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, validateConfig(&Config{ServiceName: "svc", Endpoint: "x", Sampler: 2}), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, validateConfig(&Config{ServiceName: "svc", Endpoint: "x", Batcher: "async"}), xerrors.ErrInvalidInput)
	assert.NoError(t, validateConfig(DefaultConfig("svc")))
}

func TestInitDisabledUsesDiscard(t *testing.T) {
	shutdown, err := Init(&Config{ServiceName: "svc"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().HasTraceID(), "discard provider still generates trace ids")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartRegistrySpan(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)

	_, span := StartRegistrySpan(context.Background(), tracer, RegistryMeta{
		Backend:     "nacos",
		Operation:   "register",
		ServiceName: "demo",
		InstanceID:  "id-1",
	}, attribute.String(AttrTransport, "stdio"))
	MarkSpanError(span, errors.New("registry unavailable"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "registry.register", spans[0].Name())
	assert.Equal(t, oteltrace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "nacos", attrs[AttrRegistryBackend])
	assert.Equal(t, "register", attrs[AttrRegistryOperation])
	assert.Equal(t, "demo", attrs[AttrServiceName])
	assert.Equal(t, "id-1", attrs[AttrInstanceID])
	assert.Equal(t, "stdio", attrs[AttrTransport])
}

func TestStartRegistrySpanDefaults(t *testing.T) {
	_, recorder := setupTracerForTest(t)

	//nolint:staticcheck // nil context is normalized
	_, span := StartRegistrySpan(nil, nil, RegistryMeta{})
	MarkSpanError(span, nil)
	MarkSpanError(nil, errors.New("ignored"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "registry", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestInjectExtract(t *testing.T) {
	tracer, _ := setupTracerForTest(t)

	ctx, span := tracer.Start(context.Background(), "parent")
	defer span.End()

	carrier := map[string]string{}
	Inject(ctx, carrier)
	require.NotEmpty(t, carrier["traceparent"])

	extracted := Extract(context.Background(), carrier)
	assert.Equal(t, span.SpanContext().TraceID(), oteltrace.SpanContextFromContext(extracted).TraceID())
}

func TestGRPCDialOption(t *testing.T) {
	assert.NotNil(t, GRPCDialOption())
}
