package metrics

// Label 指标标签
//
// 标签值应保持低基数，避免使用实例 ID、会话 ID 等唯一值。
//
//	counter.Inc(ctx, metrics.L("op", "register"), metrics.L("result", "ok"))
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
