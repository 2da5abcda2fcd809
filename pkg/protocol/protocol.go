// Package protocol implements the wire codec spoken by TP-Link Easy Smart
// switches: a fixed 32-byte header, a TLV payload, a 4-byte end marker, and
// a table-seeded stream transform applied over the whole frame. The
// transform is obfuscation, not encryption; the table ships in every
// firmware image.
package protocol

import "errors"

// Version carried in byte 0 of every header.
const Version uint8 = 1

// Sentinel errors shared across packages.
var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrValueTooLarge   = errors.New("field value too large")
	ErrBadComposite    = errors.New("malformed composite field")
)

// OpCode selects the operation a packet performs.
type OpCode uint8

const (
	OpDiscovery OpCode = 0
	OpGet       OpCode = 1
	OpSet       OpCode = 2
	OpLogin     OpCode = 3
	OpReturn    OpCode = 4 // only ever seen in responses
)

func (op OpCode) String() string {
	switch op {
	case OpDiscovery:
		return "discovery"
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpLogin:
		return "login"
	case OpReturn:
		return "return"
	}
	return "unknown"
}

// Well-known UDP ports. Requests are broadcast to DevicePort; the switch
// answers to HostPort on the same segment.
const (
	DevicePort = 29808
	HostPort   = 29809
)

// BroadcastAddr is the transmit destination for every request.
const BroadcastAddr = "255.255.255.255"

// packetEnd terminates every frame. A frame that does not end with it is
// rejected as malformed.
var packetEnd = [4]byte{0xFF, 0xFF, 0x00, 0x00}

// PacketEndSize is the length of the frame terminator.
const PacketEndSize = len(packetEnd)
