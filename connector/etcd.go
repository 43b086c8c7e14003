package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/trace"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

const healthCheckKey = "nacos-mcp/health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	logger  clog.Logger
	healthy atomic.Bool

	mu     sync.RWMutex
	client *clientv3.Client

	attempts metrics.Counter
	active   metrics.Gauge
}

// NewEtcd 创建 Etcd 连接器，此时不会建立连接
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	c := *cfg
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	attempts, err := opt.meter.Counter("nacos_mcp_connector_etcd_connections_total", "Etcd connection attempts.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create etcd connection counter")
	}
	active, err := opt.meter.Gauge("nacos_mcp_connector_etcd_active", "Whether the etcd connection is active.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create etcd active gauge")
	}

	return &etcdConnector{
		cfg:      &c,
		logger:   opt.logger.With(clog.String("connector", "etcd"), clog.String("name", c.Name)),
		attempts: attempts,
		active:   active,
	}, nil
}

// Connect 创建客户端并通过一次读请求确认集群可达
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	c.logger.Info("connecting to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            c.cfg.Endpoints,
		Username:             c.cfg.Username,
		Password:             c.cfg.Password,
		DialTimeout:          c.cfg.DialTimeout,
		DialKeepAliveTime:    c.cfg.KeepAliveTime,
		DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
		DialOptions:          []grpc.DialOption{trace.GRPCDialOption()},
		Context:              context.WithoutCancel(ctx),
	})
	if err != nil {
		c.attempts.Inc(ctx, metrics.L("connector", c.cfg.Name), metrics.L("result", metrics.OutcomeError))
		return xerrors.Wrapf(xerrors.Mark(err, ErrConnection), "etcd connector[%s]", c.cfg.Name)
	}

	if err := c.probe(ctx, client); err != nil {
		_ = client.Close()
		c.attempts.Inc(ctx, metrics.L("connector", c.cfg.Name), metrics.L("result", metrics.OutcomeError))
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(xerrors.Mark(err, ErrConnection), "etcd connector[%s]", c.cfg.Name)
	}

	c.client = client
	c.healthy.Store(true)
	c.attempts.Inc(ctx, metrics.L("connector", c.cfg.Name), metrics.L("result", metrics.OutcomeSuccess))
	c.active.Set(ctx, 1, metrics.L("connector", c.cfg.Name))
	c.logger.Info("connected to etcd")
	return nil
}

func (c *etcdConnector) probe(ctx context.Context, client *clientv3.Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := client.Get(probeCtx, healthCheckKey)
	return err
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}

	c.active.Set(context.Background(), 0, metrics.L("connector", c.cfg.Name))
	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return xerrors.Wrapf(err, "etcd connector[%s]: close", c.cfg.Name)
	}
	c.logger.Info("etcd connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Get(checkCtx, healthCheckKey); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Mark(err, ErrHealthCheck), "etcd connector[%s]", c.cfg.Name)
	}

	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
