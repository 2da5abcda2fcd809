// Package hostaddr selects the local network interface that shares a
// broadcast domain with a target device. The protocol only works when
// requests can be broadcast on the device's own segment, so failing to
// find such an interface is fatal and operator-actionable, not retryable.
package hostaddr

import (
	"errors"
	"fmt"
	"net"

	"github.com/hausnet/easysmart/pkg/protocol"
)

// ErrNoInterface means no local interface sits on the required subnet:
// the workstation is plugged into the wrong network segment.
var ErrNoInterface = errors.New("no local interface on the device subnet")

// factoryNet is the subnet every factory-reset device lives in.
var factoryNet = &net.IPNet{
	IP:   net.IPv4(192, 168, 0, 0).To4(),
	Mask: net.CIDRMask(24, 32),
}

// Host is a usable local endpoint: the interface address to bind, its
// netmask, and its hardware address for packet headers.
type Host struct {
	Interface string
	IP        net.IP
	Mask      net.IPMask
	MAC       protocol.MAC
}

// candidate is one IPv4 address of a non-loopback interface.
type candidate struct {
	name  string
	mac   protocol.MAC
	ipnet *net.IPNet
}

// FindForTarget returns the first local interface whose network, under its
// own netmask, contains the target address.
func FindForTarget(target net.IP) (Host, error) {
	cands, err := localCandidates()
	if err != nil {
		return Host{}, err
	}
	if h, ok := selectForTarget(cands, target); ok {
		return h, nil
	}
	return Host{}, fmt.Errorf("%w: no interface in the same network as %s", ErrNoInterface, target)
}

// FindFactoryDefault returns the first local interface inside the
// factory-default subnet 192.168.0.0/24, used during take-ownership
// before a device has a caller-assigned address.
func FindFactoryDefault() (Host, error) {
	cands, err := localCandidates()
	if err != nil {
		return Host{}, err
	}
	if h, ok := selectFactoryDefault(cands); ok {
		return h, nil
	}
	return Host{}, fmt.Errorf("%w: no interface in the factory-default network %s", ErrNoInterface, factoryNet)
}

// First returns any non-loopback IPv4 interface; discovery sweeps that
// target no particular device use it.
func First() (Host, error) {
	cands, err := localCandidates()
	if err != nil {
		return Host{}, err
	}
	if len(cands) == 0 {
		return Host{}, fmt.Errorf("%w: no usable ipv4 interface", ErrNoInterface)
	}
	return cands[0].host(), nil
}

func (c candidate) host() Host {
	return Host{Interface: c.name, IP: c.ipnet.IP, Mask: c.ipnet.Mask, MAC: c.mac}
}

// selectForTarget applies the candidate's own netmask to both addresses
// and picks the first candidate whose network matches the target's.
func selectForTarget(cands []candidate, target net.IP) (Host, bool) {
	t4 := target.To4()
	if t4 == nil {
		return Host{}, false
	}
	for _, c := range cands {
		hostNet := c.ipnet.IP.Mask(c.ipnet.Mask)
		targetNet := t4.Mask(c.ipnet.Mask)
		if targetNet != nil && hostNet.Equal(targetNet) {
			return c.host(), true
		}
	}
	return Host{}, false
}

func selectFactoryDefault(cands []candidate) (Host, bool) {
	wantOnes, _ := factoryNet.Mask.Size()
	for _, c := range cands {
		ones, _ := c.ipnet.Mask.Size()
		if ones == wantOnes && c.ipnet.IP.Mask(c.ipnet.Mask).Equal(factoryNet.IP) {
			return c.host(), true
		}
	}
	return Host{}, false
}

// localCandidates enumerates IPv4 addresses of up, non-loopback
// interfaces that carry a hardware address.
func localCandidates() ([]candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var out []candidate
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != protocol.MACSize {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		var mac protocol.MAC
		copy(mac[:], iface.HardwareAddr)
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipnet.IP.To4()
			if v4 == nil {
				continue
			}
			out = append(out, candidate{
				name:  iface.Name,
				mac:   mac,
				ipnet: &net.IPNet{IP: v4, Mask: ipnet.Mask},
			})
		}
	}
	return out, nil
}
