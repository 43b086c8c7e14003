package lifecycle

import (
	"fmt"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

var (
	// ErrInvalidTransition 当前状态不允许该操作
	ErrInvalidTransition = xerrors.New("lifecycle: invalid state transition")

	// ErrNotRegistered 未持有有效注册时拒绝启动传输
	ErrNotRegistered = xerrors.New("lifecycle: not registered")
)

// ConfigurationError 配置错误，在任何网络调用之前返回
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap 使 xerrors.Is(err, xerrors.ErrInvalidInput) 成立
func (e *ConfigurationError) Unwrap() error {
	return xerrors.ErrInvalidInput
}

// RegistrationError 初始注册失败，传输不会启动
type RegistrationError struct {
	Cause error
}

func (e *RegistrationError) Error() string {
	return "registration failed: " + e.Cause.Error()
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

func configError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
