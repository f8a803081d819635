// File: internal/netutil/ipv6.go (complete file)

package netutil

import (
	"net"
	"net/netip"
)

// IsGlobal reports whether ip is a routable unicast address. Link-local, ULA,
// multicast, loopback, unspecified and IPv4-mapped forms are excluded.
func IsGlobal(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsUnspecified() || ip.IsLoopback() || ip.IsMulticast() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if ip.Is6() {
		b := ip.As16()
		// ULA fc00::/7
		if b[0]&0xfe == 0xfc {
			return false
		}
	}
	return ip.IsGlobalUnicast()
}

// InterfaceAddrs lists the addresses of every up, non-loopback interface,
// keyed by interface name.
func InterfaceAddrs() (map[string][]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]netip.Addr, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, ok := addrToIP(a)
			if !ok {
				continue
			}
			out[iface.Name] = append(out[iface.Name], ip)
		}
	}
	return out, nil
}

// HasGlobalIPv6 reports whether the host appears to have at least one global
// IPv6 address.
func HasGlobalIPv6() bool {
	all, err := InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, addrs := range all {
		for _, ip := range addrs {
			if ip.Is6() && !ip.Is4In6() && IsGlobal(ip) {
				return true
			}
		}
	}
	return false
}

func addrToIP(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	out, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return out.Unmap(), true
}
