package network

import (
	"maps"
	"net"
	"strconv"
)

var loopback = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
	// if network is down
	"0.0.0.0": {},
}

// LocalIPs lists the addresses of every interface of this host, with and
// without the zone suffix.
func LocalIPs() map[string]struct{} {
	local := maps.Clone(loopback)

	ifaces, err := net.Interfaces()
	if err != nil {
		return local
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, address := range addrs {
			ip, _, err := net.ParseCIDR(address.String())
			if err != nil {
				continue
			}

			local[ip.String()+"%"+iface.Name] = struct{}{}
			local[ip.String()] = struct{}{}
		}
	}
	return local
}

func IsLocalIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	_, ok := LocalIPs()[ip.String()]
	return ok
}

// HostPort joins ip and port, bracketing IPv6 addresses.
func HostPort(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}
