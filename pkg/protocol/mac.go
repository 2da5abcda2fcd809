package protocol

import (
	"fmt"
	"net"
)

// MACSize is the wire size of a hardware address.
const MACSize = 6

// MAC is a 48-bit hardware address as carried in packet headers. The zero
// value addresses "any switch" and is what discovery broadcasts use.
type MAC [MACSize]byte

// MACZero matches any device; used before a target switch is known.
var MACZero = MAC{}

func (m MAC) IsZero() bool { return m == MACZero }

// String renders the address in the usual colon-separated lowercase form.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses any form net.ParseMAC accepts into a MAC.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MACZero, fmt.Errorf("invalid mac %q: %w", s, err)
	}
	if len(hw) != MACSize {
		return MACZero, fmt.Errorf("invalid mac %q: need %d bytes, got %d", s, MACSize, len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}
