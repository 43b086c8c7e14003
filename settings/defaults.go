package settings

import "github.com/ceyewan/nacos-mcp/config"

// defaults 所有 key 的默认值
//
// 只有注册过默认值的 key 才会在 Unmarshal 时读取环境变量。
var defaults = map[string]any{
	"service.name":            "nacos-mcp",
	"service.version":         "",
	"service.advertised_host": "",
	"service.instance_id":     "",
	"service.metadata":        map[string]string{},

	"transport.kind":             "stdio",
	"transport.host":             "",
	"transport.port":             0,
	"transport.mount_path":       "",
	"transport.health_path":      "/healthz",
	"transport.metrics_path":     "",
	"transport.stateless":        false,
	"transport.json_response":    false,
	"transport.shutdown_timeout": "5s",

	"registry.driver": DriverNacos,

	"nacos.endpoint":                      "127.0.0.1:8848",
	"nacos.grpc_port":                     0,
	"nacos.cache_dir":                     "",
	"nacos.namespace":                     "public",
	"nacos.group":                         "DEFAULT_GROUP",
	"nacos.cluster_name":                  "DEFAULT",
	"nacos.username":                      "",
	"nacos.password":                      "",
	"nacos.weight":                        1.0,
	"nacos.health_check_interval_seconds": 5,
	"nacos.heartbeat_failure_threshold":   3,
	"nacos.register_attempts":             3,
	"nacos.deregister_timeout":            "3s",
	"nacos.request_timeout":               "5s",
	"nacos.reregister_interval":           "1s",

	"etcd.endpoints":    []string{"127.0.0.1:2379"},
	"etcd.username":     "",
	"etcd.password":     "",
	"etcd.dial_timeout": "5s",
	"etcd.namespace":    "/nacos-mcp/services",
	"etcd.ttl":          "30s",

	"log.level":       "info",
	"log.format":      "console",
	"log.output":      "stderr",
	"log.add_source":  false,
	"log.source_root": "",

	"metrics.enabled":      false,
	"metrics.service_name": "",
	"metrics.version":      "",
	"metrics.port":         9090,
	"metrics.path":         "/metrics",

	"trace.enabled":      false,
	"trace.service_name": "",
	"trace.endpoint":     "localhost:4317",
	"trace.sampler":      1.0,
	"trace.batcher":      "batch",
	"trace.insecure":     true,
}

// RegisterDefaults 向 loader 注册全部默认值
func RegisterDefaults(loader config.Loader) {
	for key, value := range defaults {
		loader.SetDefault(key, value)
	}
}
