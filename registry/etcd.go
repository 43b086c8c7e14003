package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/connector"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

const backendEtcd = "etcd"

// etcdKey Etcd 后端的句柄私有数据
type etcdKey struct {
	Key     string
	LeaseID clientv3.LeaseID
}

// etcdRegistry 基于 Etcd 租约的 Registry 实现
//
// 实例写入 <namespace>/<service_name>/<instance_id>，值为实例 JSON，
// 绑定 TTL 租约；Heartbeat 对应一次租约续约。
type etcdRegistry struct {
	client  *clientv3.Client
	cfg     *EtcdConfig
	logger  clog.Logger
	metrics *requestMetrics
	closed  atomic.Bool

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key -> lease
}

// NewEtcd 创建 Etcd 后端
//
// 借用 connector 的连接，不负责连接的生命周期，调用前连接器必须已 Connect。
//
// 使用示例:
//
//	conn, _ := connector.NewEtcd(&connector.EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}})
//	_ = conn.Connect(ctx)
//	reg, _ := registry.NewEtcd(conn, &registry.EtcdConfig{TTL: 15 * time.Second})
func NewEtcd(conn connector.EtcdConnector, cfg *EtcdConfig, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "etcd connector is required")
	}
	c := EtcdConfig{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrNotConnected, "etcd client cannot be nil")
	}

	o := applyOptions(opts)
	m, err := newRequestMetrics(o.meter, backendEtcd)
	if err != nil {
		return nil, err
	}

	return &etcdRegistry{
		client:  client,
		cfg:     &c,
		logger:  o.logger.With(clog.String("backend", backendEtcd)),
		metrics: m,
		leases:  make(map[string]clientv3.LeaseID),
	}, nil
}

func (r *etcdRegistry) ensureOpen() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return nil
}

func (r *etcdRegistry) buildKey(serviceName, id string) string {
	return fmt.Sprintf("%s/%s/%s", r.cfg.Namespace, serviceName, id)
}

// Register 申请租约并写入实例，同一实例 ID 重复注册时替换旧租约
func (r *etcdRegistry) Register(ctx context.Context, instance *ServiceInstance) (*Handle, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := instance.Validate(); err != nil {
		return nil, err
	}

	inst := instance.Clone()
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}

	ctx, span := startSpan(ctx, backendEtcd, opRegister, inst)
	start := time.Now()
	key, leaseID, err := r.put(ctx, inst)
	r.metrics.observe(ctx, opRegister, start, err)
	endSpan(span, err)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to register instance",
			clog.String("instance", inst.String()),
			clog.ErrorWithCode(err, ErrorCode(err)))
		return nil, xerrors.Wrapf(err, "register %s", inst)
	}

	r.mu.Lock()
	previous, replaced := r.leases[key]
	r.leases[key] = leaseID
	r.mu.Unlock()
	if replaced && previous != leaseID {
		r.revoke(ctx, previous)
	}

	r.logger.InfoContext(ctx, "instance registered",
		clog.String("key", key),
		clog.Int64("lease_id", int64(leaseID)),
		clog.Duration("ttl", r.cfg.TTL))

	return newHandle(backendEtcd, inst, etcdKey{Key: key, LeaseID: leaseID}), nil
}

func (r *etcdRegistry) put(ctx context.Context, inst *ServiceInstance) (string, clientv3.LeaseID, error) {
	record := inst.Clone()
	record.Metadata = inst.PublishedMetadata()
	value, err := json.Marshal(record)
	if err != nil {
		return "", 0, xerrors.Wrap(err, "marshal instance")
	}

	lease, err := r.client.Grant(ctx, int64(r.cfg.TTL.Seconds()))
	if err != nil {
		return "", 0, classifyEtcdError(xerrors.Wrap(err, "grant lease"))
	}

	key := r.buildKey(inst.ServiceName, inst.ID)
	if _, err := r.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		r.revoke(ctx, lease.ID)
		return "", 0, classifyEtcdError(xerrors.Wrap(err, "put instance"))
	}
	return key, lease.ID, nil
}

// Deregister 撤销租约，租约已不存在视为成功
func (r *etcdRegistry) Deregister(ctx context.Context, h *Handle) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	k, err := handleKey[etcdKey](h, backendEtcd)
	if err != nil {
		return err
	}

	ctx, span := startSpan(ctx, backendEtcd, opDeregister, h.instance)
	start := time.Now()
	_, err = r.client.Revoke(ctx, k.LeaseID)
	if xerrors.Is(err, rpctypes.ErrLeaseNotFound) {
		err = nil
	}
	if err != nil {
		err = classifyEtcdError(xerrors.Wrap(err, "revoke lease"))
	}
	r.metrics.observe(ctx, opDeregister, start, err)
	endSpan(span, err)
	if err != nil {
		return xerrors.Wrapf(err, "deregister %s", h.ID())
	}

	r.mu.Lock()
	if r.leases[k.Key] == k.LeaseID {
		delete(r.leases, k.Key)
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "instance deregistered", clog.String("key", k.Key))
	return nil
}

// Heartbeat 续约一次，租约不存在时返回 ErrRegistrationLost
func (r *etcdRegistry) Heartbeat(ctx context.Context, h *Handle) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	k, err := handleKey[etcdKey](h, backendEtcd)
	if err != nil {
		return err
	}

	ctx, span := startSpan(ctx, backendEtcd, opHeartbeat, h.instance)
	start := time.Now()
	_, err = r.client.KeepAliveOnce(ctx, k.LeaseID)
	switch {
	case err == nil:
	case xerrors.Is(err, rpctypes.ErrLeaseNotFound):
		err = xerrors.Wrapf(ErrRegistrationLost, "lease %d expired", k.LeaseID)
	default:
		err = classifyEtcdError(xerrors.Wrap(err, "keep alive"))
	}
	r.metrics.observe(ctx, opHeartbeat, start, err)
	endSpan(span, err)
	if err != nil {
		return xerrors.Wrapf(err, "heartbeat %s", h.ID())
	}
	return nil
}

// Close 撤销仍持有的租约
func (r *etcdRegistry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	leases := make([]clientv3.LeaseID, 0, len(r.leases))
	for _, id := range r.leases {
		leases = append(leases, id)
	}
	r.leases = make(map[string]clientv3.LeaseID)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range leases {
		r.revoke(ctx, id)
	}

	r.logger.Info("etcd registry closed", clog.Int("revoked_leases", len(leases)))
	return nil
}

func (r *etcdRegistry) revoke(ctx context.Context, id clientv3.LeaseID) {
	if _, err := r.client.Revoke(ctx, id); err != nil && !xerrors.Is(err, rpctypes.ErrLeaseNotFound) {
		r.logger.Error("failed to revoke lease",
			clog.Int64("lease_id", int64(id)),
			clog.Error(err))
	}
}

// classifyEtcdError 鉴权类错误视为拒绝，其余视为暂时不可用
func classifyEtcdError(err error) error {
	switch {
	case xerrors.Is(err, rpctypes.ErrPermissionDenied),
		xerrors.Is(err, rpctypes.ErrAuthFailed),
		xerrors.Is(err, rpctypes.ErrUserEmpty),
		xerrors.Is(err, rpctypes.ErrInvalidAuthToken):
		return xerrors.Mark(err, ErrRegistryRejected)
	default:
		return xerrors.Mark(err, ErrRegistryUnavailable)
	}
}
