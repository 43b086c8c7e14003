package breaker

import "github.com/ceyewan/nacos-mcp/xerrors"

var (
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: config is nil")
	ErrKeyEmpty  = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: key is empty")

	// ErrOpenState 熔断打开或半开探测名额已满，调用方应按暂时不可用处理
	ErrOpenState = xerrors.Wrap(xerrors.ErrUnavailable, "breaker: circuit is open")
)
