package protocol

// PortMask is a 32-bit port membership bitmap: bit (p-1) set means port p
// is included. Port numbers are 1-based; valid ports are 1..32.
type PortMask uint32

// MaskFromPorts builds a bitmap from a port list. Ports outside 1..32 are
// ignored.
func MaskFromPorts(ports []int) PortMask {
	var m PortMask
	for _, p := range ports {
		if p < 1 || p > 32 {
			continue
		}
		m |= 1 << (p - 1)
	}
	return m
}

// Ports expands the bitmap back into an ascending port list.
func (m PortMask) Ports() []int {
	var out []int
	for p := 1; p <= 32; p++ {
		if m&(1<<(p-1)) != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether port p is set in the bitmap.
func (m PortMask) Has(p int) bool {
	if p < 1 || p > 32 {
		return false
	}
	return m&(1<<(p-1)) != 0
}
