package ip

import (
	"net/netip"
)

// SameHost reports whether x and y denote the same host, ignoring
// IPv4-mapped IPv6 forms and zones.
func SameHost(x, y netip.Addr) bool {
	return x.Unmap().WithZone("") == y.Unmap().WithZone("")
}

// Preferred picks the first IPv4 address of addrs, or the first address
// if there is none. The result is unmapped.
func Preferred(addrs []netip.Addr) (netip.Addr, bool) {
	if len(addrs) == 0 {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), true
		}
	}
	return addrs[0].Unmap(), true
}
