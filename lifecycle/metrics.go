package lifecycle

import (
	"context"

	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// 指标名称
const (
	MetricLifecycleState  = "nacos_mcp_lifecycle_state"
	MetricReregistrations = "nacos_mcp_reregistrations_total"
)

type bridgeMetrics struct {
	state           metrics.Gauge
	reregistrations metrics.Counter
}

func newBridgeMetrics(m metrics.Meter) (*bridgeMetrics, error) {
	state, err := m.Gauge(MetricLifecycleState, "Current registration lifecycle state.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create lifecycle state gauge")
	}
	rereg, err := m.Counter(MetricReregistrations, "Re-registration attempts after a lost registration.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create re-registration counter")
	}
	return &bridgeMetrics{state: state, reregistrations: rereg}, nil
}

func (m *bridgeMetrics) setState(ctx context.Context, service string, s State) {
	m.state.Set(ctx, float64(s), metrics.L("service", service))
}

func (m *bridgeMetrics) reregistered(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reregistrations.Inc(ctx, metrics.L("result", result))
}
