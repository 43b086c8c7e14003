package config

import "github.com/ceyewan/nacos-mcp/xerrors"

// ErrValidationFailed 配置验证失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput) || xerrors.Is(err, ErrValidationFailed)
}

// wrapLoadError 包装加载错误，并归类为无效输入
func wrapLoadError(err error, message string) error {
	if err == nil {
		return nil
	}
	return xerrors.Mark(xerrors.Wrapf(err, "failed to load config: %s", message), xerrors.ErrInvalidInput)
}
