package breaker

import (
	"context"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// 指标与标签
const (
	MetricRequestsTotal    = "nacos_mcp_breaker_requests_total"
	MetricStateChangeTotal = "nacos_mcp_breaker_state_changes_total"

	LabelKey    = "key"
	LabelResult = "result"
	LabelFrom   = "from_state"
	LabelTo     = "to_state"
)

// circuitBreaker 熔断器实现
type circuitBreaker struct {
	cfg       *Config
	logger    clog.Logger
	fallback  FallbackFunc
	isFailure FailurePredicate

	requests     metrics.Counter
	stateChanges metrics.Counter

	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[any]
}

func newBreaker(cfg *Config, opt options) (Breaker, error) {
	requests, err := opt.meter.Counter(MetricRequestsTotal, "Requests executed through the circuit breaker.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker request counter")
	}
	stateChanges, err := opt.meter.Counter(MetricStateChangeTotal, "Circuit breaker state transitions.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker state counter")
	}

	cb := &circuitBreaker{
		cfg:          cfg,
		logger:       opt.logger,
		fallback:     opt.fallback,
		isFailure:    opt.isFailure,
		requests:     requests,
		stateChanges: stateChanges,
	}

	cb.logger.Debug("circuit breaker created",
		clog.Int("max_requests", int(cfg.MaxRequests)),
		clog.Duration("timeout", cfg.Timeout),
		clog.Float64("failure_ratio", cfg.FailureRatio),
		clog.Int("minimum_requests", int(cfg.MinimumRequests)))

	return cb, nil
}

// Execute 执行受熔断保护的函数
func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := cb.getOrCreateBreaker(key).Execute(fn)
	if err == nil {
		cb.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, "success"))
		return result, nil
	}

	if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, "rejected"))
		cb.logger.Warn("circuit breaker open, request rejected", clog.String("key", key))

		if cb.fallback != nil {
			return nil, cb.fallback(ctx, key, ErrOpenState)
		}
		return nil, xerrors.Wrap(ErrOpenState, key)
	}

	cb.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, "failure"))
	return result, err
}

// State 获取指定键的熔断器状态
func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}

	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}
	return fromGobreaker(val.(*gobreaker.CircuitBreaker[any]).State()), nil
}

// getOrCreateBreaker 获取或创建指定键的熔断器
func (cb *circuitBreaker) getOrCreateBreaker(key string) *gobreaker.CircuitBreaker[any] {
	if val, ok := cb.breakers.Load(key); ok {
		return val.(*gobreaker.CircuitBreaker[any])
	}

	settings := gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		OnStateChange: cb.onStateChange,
	}
	if cb.isFailure != nil {
		isFailure := cb.isFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	actual, _ := cb.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker[any](settings))
	return actual.(*gobreaker.CircuitBreaker[any])
}

// readyToTrip 请求数达到下限且失败率超过阈值时触发熔断
func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= cb.cfg.FailureRatio
}

func (cb *circuitBreaker) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	fromState, toState := fromGobreaker(from), fromGobreaker(to)

	cb.stateChanges.Inc(context.Background(),
		metrics.L(LabelKey, name),
		metrics.L(LabelFrom, fromState.String()),
		metrics.L(LabelTo, toState.String()))

	cb.logger.Info("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", fromState.String()),
		clog.String("to", toState.String()),
		clog.Duration("open_timeout", cb.cfg.Timeout))
}

func fromGobreaker(state gobreaker.State) State {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
