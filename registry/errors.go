package registry

import "github.com/ceyewan/nacos-mcp/xerrors"

var (
	// ErrRegistryUnavailable 注册中心不可达或暂时不可用
	ErrRegistryUnavailable = xerrors.Wrap(xerrors.ErrUnavailable, "registry unavailable")

	// ErrRegistryRejected 注册中心拒绝了请求
	ErrRegistryRejected = xerrors.New("registry rejected request")

	// ErrRegistrationLost 实例已不在注册中心
	ErrRegistrationLost = xerrors.New("registration lost")

	// ErrInvalidServiceInstance 无效的服务实例
	ErrInvalidServiceInstance = xerrors.Wrap(xerrors.ErrInvalidInput, "invalid service instance")

	// ErrInvalidHandle 句柄为空或不属于当前后端
	ErrInvalidHandle = xerrors.Wrap(xerrors.ErrInvalidInput, "invalid registration handle")

	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.New("registry is closed")
)

// ErrorCode 返回错误对应的错误码，用于日志字段
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case xerrors.Is(err, ErrRegistrationLost):
		return xerrors.CodeLost
	case xerrors.Is(err, ErrRegistryUnavailable):
		return xerrors.CodeUnavailable
	case xerrors.Is(err, ErrRegistryRejected):
		return xerrors.CodeRejected
	default:
		return xerrors.CodeRegistration
	}
}

// resultOf 将错误归类为指标结果标签
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case xerrors.Is(err, ErrRegistrationLost):
		return "lost"
	case xerrors.Is(err, ErrRegistryUnavailable):
		return "unavailable"
	case xerrors.Is(err, ErrRegistryRejected):
		return "rejected"
	default:
		return "error"
	}
}
