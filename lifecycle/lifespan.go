package lifecycle

import (
	"context"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

// LifespanFunc 用户生命周期钩子
//
// 进入时返回供传输使用的 ctx 与退出清理函数，任一返回值可为空。
type LifespanFunc func(ctx context.Context) (context.Context, func(context.Context) error, error)

type lifespanKind uint8

const (
	lifespanDefault lifespanKind = iota
	lifespanUser
)

// Lifespan 包裹传输运行的钩子，零值等价于 DefaultLifespan
type Lifespan struct {
	kind lifespanKind
	fn   LifespanFunc
}

// DefaultLifespan 不做任何事
func DefaultLifespan() Lifespan {
	return Lifespan{kind: lifespanDefault}
}

// UserLifespan 使用调用方提供的钩子，fn 为 nil 时退化为 DefaultLifespan
func UserLifespan(fn LifespanFunc) Lifespan {
	if fn == nil {
		return DefaultLifespan()
	}
	return Lifespan{kind: lifespanUser, fn: fn}
}

// IsDefault 是否为默认钩子
func (l Lifespan) IsDefault() bool {
	return l.kind == lifespanDefault
}

// Run 在钩子内执行 fn
//
// 进入失败时不执行 fn；fn 返回后总会执行清理，清理使用不可取消的 ctx。
func (l Lifespan) Run(ctx context.Context, fn func(context.Context) error) error {
	if l.kind == lifespanDefault {
		return fn(ctx)
	}

	runCtx, cleanup, err := l.fn(ctx)
	if err != nil {
		return xerrors.Wrap(err, "enter lifespan")
	}
	if runCtx == nil {
		runCtx = ctx
	}

	runErr := fn(runCtx)
	if cleanup != nil {
		if err := cleanup(context.WithoutCancel(ctx)); err != nil {
			runErr = xerrors.Combine(runErr, xerrors.Wrap(err, "exit lifespan"))
		}
	}
	return runErr
}
