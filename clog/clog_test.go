package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// newBufferLogger 创建输出到缓冲区的 json Logger
func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{Level: level, Format: "json", Output: "buffer"}, append(opts, withBuffer(buf))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, buf
}

// decodeLines 将缓冲区中的每行 json 解码为 map
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// TestNew 测试 Logger 创建
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "defaults", config: &Config{}},
		{name: "json stderr", config: &Config{Level: "warn", Format: "json", Output: "stderr"}},
		{name: "invalid level", config: &Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
		{name: "buffer without buffer option", config: &Config{Output: "buffer"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger on success")
			}
		})
	}
}

// TestConfigDefaults 测试默认值填充
func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

// TestLoggerLevels 测试级别过滤
func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Errorf("unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

// TestLoggerSetLevel 测试动态调整级别对子 Logger 同样生效
func TestLoggerSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	child := logger.WithNamespace("registry")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %s", buf.String())
	}

	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("visible")

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "visible" {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

// TestLoggerNamespaceAndFields 测试命名空间与字段输出
func TestLoggerNamespaceAndFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("nacos-mcp"))

	logger.WithNamespace("lifecycle").
		With(String("service", "demo")).
		Info("instance registered", Int("port", 8080), Error(nil), Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	line := lines[0]
	if line[NamespaceKey] != "nacos-mcp.lifecycle" {
		t.Errorf("namespace = %v", line[NamespaceKey])
	}
	if line["service"] != "demo" {
		t.Errorf("service = %v", line["service"])
	}
	if line["port"] != float64(8080) {
		t.Errorf("port = %v", line["port"])
	}
	if line["err_msg"] != "boom" {
		t.Errorf("err_msg = %v", line["err_msg"])
	}
	if _, ok := line[""]; ok {
		t.Error("nil error field should be dropped")
	}
}

// TestLoggerWithDoesNotMutateSiblings 测试 With 派生的兄弟 Logger 互不影响
func TestLoggerWithDoesNotMutateSiblings(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	base := logger.With(String("a", "1"))
	left := base.With(String("side", "left"))
	right := base.With(String("side", "right"))

	left.Info("left")
	right.Info("right")

	lines := decodeLines(t, buf)
	if lines[0]["side"] != "left" || lines[1]["side"] != "right" {
		t.Errorf("sibling loggers interfere: %s", buf.String())
	}
}

type sessionKey struct{}

// TestLoggerContextFields 测试从 Context 中提取字段
func TestLoggerContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithContextField(sessionKey{}, "session_id"))

	ctx := context.WithValue(context.Background(), sessionKey{}, "sess-1")
	logger.InfoContext(ctx, "request handled")
	logger.Info("no context")

	lines := decodeLines(t, buf)
	if lines[0]["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", lines[0]["session_id"])
	}
	if _, ok := lines[1]["session_id"]; ok {
		t.Error("session_id should be absent without context")
	}
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) should fail")
	}
	if WarnLevel.String() != "warn" {
		t.Errorf("WarnLevel.String() = %s", WarnLevel.String())
	}
}

// TestDiscard 测试静默 Logger
func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.With(String("k", "v")).WithNamespace("x").Info("nothing")
	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Errorf("SetLevel() error = %v", err)
	}
	logger.Flush()
}

// TestLoggerTraceFields 测试携带 Span 的 Context 自动附加链路字段
func TestLoggerTraceFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "instance registered")
	logger.InfoContext(context.Background(), "no span")

	lines := decodeLines(t, buf)
	if lines[0][TraceIDKey] != sc.TraceID().String() {
		t.Errorf("trace_id = %v", lines[0][TraceIDKey])
	}
	if lines[0][SpanIDKey] != sc.SpanID().String() {
		t.Errorf("span_id = %v", lines[0][SpanIDKey])
	}
	if _, ok := lines[1][TraceIDKey]; ok {
		t.Error("trace_id should be absent without a span")
	}
}
