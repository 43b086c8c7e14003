// Package connector 管理外部存储的连接生命周期。
//
// 当前提供 Etcd 连接器，供 registry 的 etcd 后端使用：
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
//
// NewXXX 只校验配置，Connect 时才建立连接。Connect 与 Close 都是幂等的。
// Connector 拥有底层客户端的生命周期，借用方不应关闭 GetClient 返回的客户端。
package connector

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全
type Connector interface {
	// Connect 建立连接，重复调用直接返回 nil
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，重复调用直接返回 nil
	Close() error

	// HealthCheck 发送探测请求并更新健康状态缓存
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最近一次检查的结果
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后返回零值
	GetClient() T
}

// EtcdConnector Etcd 连接器接口
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
