package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/nacos-mcp/clog"
)

func shutdown(t *testing.T, m Meter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

// TestNew 测试创建 Meter 实例
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		opts    []Option
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "disabled", cfg: &Config{ServiceName: "test-service"}},
		{name: "enabled without server", cfg: &Config{Enabled: true, ServiceName: "test-service", Version: "v1.0.0"}},
		{
			name: "with logger option",
			cfg:  &Config{Enabled: true, ServiceName: "test-service"},
			opts: []Option{WithLogger(clog.Discard())},
		},
		{
			name: "with nil logger",
			cfg:  &Config{Enabled: true, ServiceName: "test-service"},
			opts: []Option{WithLogger(nil)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter, err := New(tt.cfg, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if meter == nil {
				t.Fatal("New() returned nil meter")
			}
			shutdown(t, meter)
		})
	}
}

// TestNewIndependentRegistries 测试多次创建 Meter 不会冲突
func TestNewIndependentRegistries(t *testing.T) {
	for i := 0; i < 2; i++ {
		meter, err := New(&Config{Enabled: true})
		if err != nil {
			t.Fatalf("New() #%d error = %v", i, err)
		}
		if _, err := meter.Counter("nacos_mcp_dup_total", "dup"); err != nil {
			t.Fatalf("Counter() #%d error = %v", i, err)
		}
		shutdown(t, meter)
	}
}

// TestDiscard 测试 Discard 函数
func TestDiscard(t *testing.T) {
	meter := Discard()
	ctx := context.Background()

	counter, err := meter.Counter("test", "test")
	if err != nil {
		t.Errorf("Counter() error = %v", err)
	}
	counter.Inc(ctx)
	counter.Add(ctx, 3)

	gauge, err := meter.Gauge("test", "test")
	if err != nil {
		t.Errorf("Gauge() error = %v", err)
	}
	gauge.Set(ctx, 100)
	gauge.Inc(ctx)
	gauge.Dec(ctx)

	histogram, err := meter.Histogram("test", "test")
	if err != nil {
		t.Errorf("Histogram() error = %v", err)
	}
	histogram.Record(ctx, 0.123)

	if err := meter.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	w := httptest.NewRecorder()
	Handler(meter).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Handler(noop) status = %d, want 404", w.Code)
	}
}

// TestHandlerExposesInstruments 测试 Prometheus handler 输出已记录的指标
func TestHandlerExposesInstruments(t *testing.T) {
	meter, err := New(&Config{Enabled: true, ServiceName: "test-service", Version: "v1.0.0"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer shutdown(t, meter)

	ctx := context.Background()
	counter, err := meter.Counter("nacos_mcp_test_requests_total", "测试计数器")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	gauge, err := meter.Gauge("nacos_mcp_test_state", "测试仪表盘")
	if err != nil {
		t.Fatalf("Gauge() error = %v", err)
	}
	histogram, err := meter.Histogram("nacos_mcp_test_duration_seconds", "测试直方图",
		WithUnit("s"), WithBuckets([]float64{0.1, 1}))
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}

	counter.Inc(ctx, L("op", "register"), L("result", "ok"))
	gauge.Set(ctx, 2)
	gauge.Inc(ctx)
	histogram.Record(ctx, 0.05, L("op", "register"))

	srv := httptest.NewServer(Handler(meter))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape error = %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}

	text := string(body)
	for _, name := range []string{"nacos_mcp_test_requests_total", "nacos_mcp_test_state", "nacos_mcp_test_duration_seconds", "go_goroutines"} {
		if !strings.Contains(text, name) {
			t.Errorf("scrape output missing %s", name)
		}
	}
	if !strings.Contains(text, `op="register"`) {
		t.Error("scrape output missing op label")
	}
}

// TestDefaultConfigs 测试默认配置工厂
func TestDefaultConfigs(t *testing.T) {
	devCfg := NewDevDefaultConfig("test-service")
	if devCfg.ServiceName != "test-service" || devCfg.Version != "dev" || devCfg.Port != 9090 || devCfg.Path != "/metrics" {
		t.Errorf("unexpected dev config: %+v", devCfg)
	}

	prodCfg := NewProdDefaultConfig("prod-service", "v1.2.3")
	if prodCfg.Version != "v1.2.3" || !prodCfg.Enabled {
		t.Errorf("unexpected prod config: %+v", prodCfg)
	}

	cfg := &Config{Path: "metrics"}
	cfg.setDefaults()
	if cfg.Path != "/metrics" || cfg.ServiceName != "nacos-mcp" {
		t.Errorf("setDefaults() = %+v", cfg)
	}
}
