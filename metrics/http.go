package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

const (
	MetricHTTPRequests        = "nacos_mcp_http_requests_total"
	MetricHTTPRequestDuration = "nacos_mcp_http_request_duration_seconds"

	headerSessionID = "Mcp-Session-Id"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// HTTPMetrics MCP HTTP 端点的请求计数与耗时
//
// 流式响应会让耗时覆盖整个 SSE 连接，因此桶上限放到 30s。
type HTTPMetrics struct {
	service  string
	requests Counter
	duration Histogram
	static   []Label
}

// NewHTTPMetrics 在 m 上创建 HTTP 指标，static 附加到每条记录
func NewHTTPMetrics(m Meter, service string, static ...Label) (*HTTPMetrics, error) {
	if m == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meter is required")
	}
	service = strings.TrimSpace(service)
	if service == "" {
		service = UnknownRoute
	}

	requests, err := m.Counter(MetricHTTPRequests, "Total number of requests served by the MCP HTTP endpoint.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}
	duration, err := m.Histogram(MetricHTTPRequestDuration, "MCP HTTP request duration in seconds.",
		WithUnit("s"), WithBuckets(httpDurationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create http duration histogram")
	}

	return &HTTPMetrics{
		service:  service,
		requests: requests,
		duration: duration,
		static:   append([]Label(nil), static...),
	}, nil
}

// Observe 记录一次请求
func (m *HTTPMetrics) Observe(ctx context.Context, method, route, session string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if route = strings.TrimSpace(route); route == "" {
		route = UnknownRoute
	}

	labels := make([]Label, 0, len(m.static)+6)
	labels = append(labels, m.static...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelMethod, method),
		L(LabelRoute, route),
		L(LabelSession, session),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requests.Inc(ctx, labels...)
	m.duration.Record(ctx, elapsed.Seconds(), labels...)
}

// GinMiddleware 按路由模板记录请求，未命中的路径归入 UnknownRoute
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		session := SessionNew
		if c.GetHeader(headerSessionID) != "" {
			session = SessionExisting
		}

		start := time.Now()
		c.Next()

		m.Observe(c.Request.Context(), c.Request.Method, c.FullPath(), session, c.Writer.Status(), time.Since(start))
	}
}
