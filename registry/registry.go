// Package registry 实现 MCP 服务实例在注册中心上的注册、注销与心跳。
//
// 提供三种后端：
//   - Nacos：基于 nacos-sdk-go 命名客户端的临时实例（默认）
//   - Etcd：基于租约的 key 注册，复用 connector 的 Etcd 连接
//   - Memory：进程内注册表，用于本地开发与测试
//
// 各后端实现同一个 Registry 接口，Register 返回的 Handle 是后续
// Deregister 与 Heartbeat 的唯一凭证。心跳由 Heartbeat 监视器在后台驱动，
// 连续失败达到阈值或注册中心确认实例丢失时，通过 Lost() 通道发出一次通知，
// 由调用方决定是否重新注册。
//
// ## 基本使用
//
//	reg, _ := registry.NewNacos(&registry.NacosConfig{
//		Endpoint:  "127.0.0.1:8848",
//		Namespace: "public",
//		Group:     "DEFAULT_GROUP",
//	}, registry.WithLogger(logger))
//	defer reg.Close()
//
//	port := 8080
//	h, err := reg.Register(ctx, &registry.ServiceInstance{
//		ServiceName: "demo",
//		Transport:   registry.TransportStreaming,
//		Host:        "10.0.0.8",
//		Port:        &port,
//	})
//
//	hb := registry.StartHeartbeat(ctx, reg, h, registry.HeartbeatConfig{Interval: 5 * time.Second})
//	defer hb.Stop()
//
//	_ = reg.Deregister(ctx, h)
//
// ## 错误分类
//
// 所有后端返回的错误都可以用 xerrors.Is 归类：
//   - ErrRegistryUnavailable：网络失败、超时、5xx 或熔断打开，可重试
//   - ErrRegistryRejected：注册中心校验失败并拒绝请求，不可重试
//   - ErrRegistrationLost：心跳发现实例已不在注册中心
package registry

import "context"

// Registry 注册中心客户端
type Registry interface {
	// Register 注册服务实例，重复注册同一逻辑实例会刷新而不是新增条目
	Register(ctx context.Context, instance *ServiceInstance) (*Handle, error)

	// Deregister 注销实例，实例已不存在视为成功
	Deregister(ctx context.Context, h *Handle) error

	// Heartbeat 发送一次心跳，实例已丢失时返回 ErrRegistrationLost
	Heartbeat(ctx context.Context, h *Handle) error

	// Close 释放客户端资源，之后的调用返回 ErrRegistryClosed
	Close() error
}
