package netutil

import (
	"net"
	"strings"
)

// specialUseCIDRs covers private, loopback, link-local, CGN and other
// reserved ranges that must never be reachable through the relay.
var specialUseCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"100.64.0.0/10",   // carrier-grade NAT
		"192.0.0.0/24",    // IETF protocol assignments
		"192.0.2.0/24",    // TEST-NET-1
		"198.18.0.0/15",   // benchmarking
		"198.51.100.0/24", // TEST-NET-2
		"203.0.113.0/24",  // TEST-NET-3
		"240.0.0.0/4",     // reserved
		"::1/128",
		"fc00::/7",
		"fe80::/10",
		"64:ff9b:1::/48",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}()

// blockedHostnames are aliases for the local machine that never go through DNS.
var blockedHostnames = map[string]bool{
	"localhost":     true,
	"0.0.0.0":       true,
	"ip6-localhost": true,
	"ip6-loopback":  true,
}

// IsPrivateIP returns true if the IP is in a private, loopback, link-local or reserved range
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	for _, network := range specialUseCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsBlockedHostname returns true for denylisted aliases of internal hosts.
func IsBlockedHostname(host string) bool {
	return blockedHostnames[strings.ToLower(host)]
}
