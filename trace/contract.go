package trace

const (
	// 注册中心调用的语义属性键
	AttrRegistryBackend   = "registry.backend"
	AttrRegistryOperation = "registry.operation"
	AttrServiceName       = "registry.service_name"
	AttrInstanceID        = "registry.instance_id"
	AttrTransport         = "mcp.transport"
)

// SpanNameRegistry 返回注册中心调用的标准 Span Name
func SpanNameRegistry(op string) string {
	if op == "" {
		return "registry"
	}
	return "registry." + op
}
