package lifecycle

import (
	"net"

	"github.com/ceyewan/nacos-mcp/xerrors"
)

// HostResolver 返回对外公布的本机地址
type HostResolver func() (string, error)

// DetectHost 返回第一个非回环的 IPv4 地址，找不到时返回 127.0.0.1
func DetectHost() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", xerrors.Wrap(err, "list interface addresses")
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "127.0.0.1", nil
}

// isConcrete 监听地址本身能否作为公布地址，只有空值与通配地址不能
//
// 回环地址原样公布：服务只监听在回环上时，公布其他地址会指向无人监听的端口。
func isConcrete(host string) bool {
	if host == "" {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsUnspecified()
}

// resolveHost 依次使用显式配置、具体的监听地址和本机探测结果
func resolveHost(advertised, bind string, resolver HostResolver) (string, error) {
	if advertised != "" {
		return advertised, nil
	}
	if isConcrete(bind) {
		return bind, nil
	}
	host, err := resolver()
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", xerrors.New("host resolver returned empty address")
	}
	return host, nil
}
