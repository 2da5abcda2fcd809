package hostaddr

import (
	"errors"
	"net"
	"testing"

	"github.com/hausnet/easysmart/pkg/protocol"
)

func cand(name, cidr string, mac protocol.MAC) candidate {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return candidate{name: name, mac: mac, ipnet: &net.IPNet{IP: ip.To4(), Mask: ipnet.Mask}}
}

var (
	macA = protocol.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x0a}
	macB = protocol.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x0b}
)

func TestSelectForTarget(t *testing.T) {
	t.Parallel()
	cands := []candidate{
		cand("eth0", "10.0.1.7/24", macA),
		cand("eth1", "10.0.10.7/24", macB),
	}

	tests := []struct {
		name      string
		target    string
		wantIface string
		wantOK    bool
	}{
		{"first subnet", "10.0.1.50", "eth0", true},
		{"second subnet", "10.0.10.50", "eth1", true},
		{"no match", "192.168.5.1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := selectForTarget(cands, net.ParseIP(tt.target))
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && h.Interface != tt.wantIface {
				t.Errorf("interface: got %q, want %q", h.Interface, tt.wantIface)
			}
		})
	}
}

func TestSelectForTargetUsesCandidateMask(t *testing.T) {
	t.Parallel()
	// /16 on the interface: target in a different /24 still matches.
	cands := []candidate{cand("eth0", "10.0.1.7/16", macA)}
	if _, ok := selectForTarget(cands, net.ParseIP("10.0.200.50")); !ok {
		t.Error("target inside the /16 did not match")
	}
	if _, ok := selectForTarget(cands, net.ParseIP("10.1.0.50")); ok {
		t.Error("target outside the /16 matched")
	}
}

func TestSelectFactoryDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		cands  []candidate
		wantOK bool
	}{
		{"present", []candidate{
			cand("eth0", "10.0.1.7/24", macA),
			cand("eth1", "192.168.0.42/24", macB),
		}, true},
		{"wrong prefix length", []candidate{cand("eth0", "192.168.0.42/16", macA)}, false},
		{"wrong network", []candidate{cand("eth0", "192.168.1.42/24", macA)}, false},
		{"none", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := selectFactoryDefault(tt.cands)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && h.Interface != "eth1" {
				t.Errorf("interface: got %q, want eth1", h.Interface)
			}
		})
	}
}

func TestSelectForTargetRejectsIPv6Target(t *testing.T) {
	t.Parallel()
	cands := []candidate{cand("eth0", "10.0.1.7/24", macA)}
	if _, ok := selectForTarget(cands, net.ParseIP("fe80::1")); ok {
		t.Error("ipv6 target matched an ipv4 candidate")
	}
}

func TestFindForTargetErrIsNoInterface(t *testing.T) {
	t.Parallel()
	// 198.51.100.0/24 (TEST-NET-2) should never be locally configured.
	_, err := FindForTarget(net.ParseIP("198.51.100.77"))
	if err != nil && !errors.Is(err, ErrNoInterface) {
		t.Fatalf("expected ErrNoInterface, got %v", err)
	}
}
