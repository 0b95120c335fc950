package ip

import (
	"net/netip"
	"testing"
)

func TestSameHost(t *testing.T) {
	a := netip.MustParseAddr("192.0.2.1")
	if !SameHost(a, netip.MustParseAddr("::ffff:192.0.2.1")) {
		t.Error("SameHost(v4, v4-mapped) = false")
	}
	if !SameHost(netip.MustParseAddr("fe80::1%eth0"), netip.MustParseAddr("fe80::1")) {
		t.Error("SameHost ignores zones: got false")
	}
	if SameHost(a, netip.MustParseAddr("192.0.2.2")) {
		t.Error("SameHost(different) = true")
	}
}

func TestPreferred(t *testing.T) {
	v6 := netip.MustParseAddr("2001:db8::1")
	v4 := netip.MustParseAddr("::ffff:192.0.2.1")
	got, ok := Preferred([]netip.Addr{v6, v4})
	if !ok || got != netip.MustParseAddr("192.0.2.1") {
		t.Errorf("Preferred = %v, %v, want 192.0.2.1", got, ok)
	}
	got, ok = Preferred([]netip.Addr{v6})
	if !ok || got != v6 {
		t.Errorf("Preferred(v6 only) = %v, %v", got, ok)
	}
	if _, ok := Preferred(nil); ok {
		t.Error("Preferred(nil) reported an address")
	}
}
