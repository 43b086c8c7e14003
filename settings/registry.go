package settings

import (
	"context"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/connector"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// OpenRegistry 按驱动创建注册中心客户端
//
// 返回的 close 函数依次关闭客户端与其底层连接，调用方负责在退出时调用。
func OpenRegistry(ctx context.Context, s *Settings, logger clog.Logger, meter metrics.Meter) (registry.Registry, func() error, error) {
	opts := []registry.Option{registry.WithLogger(logger), registry.WithMeter(meter)}

	switch s.Registry.Driver {
	case DriverNacos:
		reg, err := registry.NewNacos(s.NacosConfig(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg.Close, nil

	case DriverEtcd:
		conn, err := connector.NewEtcd(s.EtcdConnectorConfig(),
			connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, nil, xerrors.Combine(xerrors.Mark(err, registry.ErrRegistryUnavailable), conn.Close())
		}
		reg, err := registry.NewEtcd(conn, s.EtcdRegistryConfig(), opts...)
		if err != nil {
			return nil, nil, xerrors.Combine(err, conn.Close())
		}
		return reg, func() error { return xerrors.Combine(reg.Close(), conn.Close()) }, nil

	case DriverMemory:
		reg, err := registry.NewMemory(opts...)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg.Close, nil

	default:
		return nil, nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown registry driver %q", s.Registry.Driver)
	}
}
