// Package xerrors 提供 nacos-mcp 各组件共用的错误处理工具。
//
// 约定：
//   - 组件内部使用 Wrap/Wrapf 为错误追加上下文，保留错误链
//   - 组件对外暴露的哨兵错误通过 Is 判断，而不是比较字符串
//   - 需要机器可读分类时（如退出码、指标标签）使用 WithCode/GetCode
package xerrors

import (
	"errors"
	"fmt"
)

// 通用哨兵错误，组件级错误通过 Wrap 关联到这些分类上
var (
	// ErrInvalidInput 输入或配置无效
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")

	// ErrUnavailable 依赖的远端服务暂时不可用
	ErrUnavailable = errors.New("unavailable")
)

// 错误码，用于日志字段和指标标签
const (
	CodeConfig       = "CONFIG"
	CodeRegistration = "REGISTRATION"
	CodeUnavailable  = "REGISTRY_UNAVAILABLE"
	CodeRejected     = "REGISTRY_REJECTED"
	CodeLost         = "REGISTRATION_LOST"
)

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark 将 err 同时关联到 kind 分类，两者都可以通过 Is 匹配。
//
// 示例：
//
//	return xerrors.Mark(netErr, registry.ErrRegistryUnavailable)
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	if kind == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，没有则返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// Combine 将多个错误合并为一个，忽略 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// MultiError 合并多个错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
