package lifecycle

// State 注册生命周期状态
//
// 正常路径为 Unregistered → Registering → Registered → Deregistering → Deregistered；
// 注册或注销失败进入 Failed，Failed 与 Deregistered 为终态。
// 重新注册期间状态从 Registered 回到 Registering，成功后再回到 Registered。
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateDeregistering
	StateDeregistered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateDeregistering:
		return "deregistering"
	case StateDeregistered:
		return "deregistered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateDeregistered || s == StateFailed
}

// canTransition 允许的状态迁移
func canTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateUnregistered:
		return to == StateRegistering
	case StateRegistering:
		return to == StateRegistered || to == StateDeregistering
	case StateRegistered:
		return to == StateRegistering || to == StateDeregistering
	case StateDeregistering:
		return to == StateDeregistered
	default:
		return false
	}
}
