package metrics

import "strconv"

// 标签键
const (
	LabelService     = "service"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelSession     = "mcp_session"
)

// 结果标签值
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownRoute 未命中任何路由的请求统一归入该值
const UnknownRoute = "unknown"

// 会话标签值：未携带 Mcp-Session-Id 的请求是新会话的初始化请求
const (
	SessionNew      = "new"
	SessionExisting = "existing"
)

// HTTPStatusClass 返回 1xx 到 5xx，越界时返回 unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 2xx、3xx 视为成功
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}

// ErrorOutcome 根据 err 是否为 nil 返回结果标签
func ErrorOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return OutcomeError
}
