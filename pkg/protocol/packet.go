package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header wire layout (32 bytes, big-endian):
//
//	Byte  0:     Version
//	Byte  1:     OpCode
//	Byte  2-7:   Switch MAC (6 bytes)
//	Byte  8-13:  Host MAC (6 bytes)
//	Byte  14-15: Sequence ID
//	Byte  16-19: Error Code
//	Byte  20-21: Check Length (header + payload + end marker)
//	Byte  22-23: Fragment Offset
//	Byte  24-25: Flag
//	Byte  26-27: Token ID
//	Byte  28-31: Checksum (always zero on the wire; never validated)
const HeaderSize = 32

type Header struct {
	Version        uint8
	Op             OpCode
	SwitchMAC      MAC
	HostMAC        MAC
	SequenceID     int16
	ErrorCode      int32
	CheckLength    int16
	FragmentOffset int16
	Flag           int16
	TokenID        int16
	Checksum       int32
}

// Packet is one request or response frame: a header plus TLV fields.
type Packet struct {
	Header Header
	Fields []Field
}

// Marshal serializes and obfuscates the packet. CheckLength is computed
// here and overrides whatever the caller set.
func (p *Packet) Marshal() ([]byte, error) {
	plain, err := p.assemble()
	if err != nil {
		return nil, err
	}
	return Obfuscate(plain), nil
}

// assemble produces the plaintext frame: header, fields, end marker.
func (p *Packet) assemble() ([]byte, error) {
	payloadLen := 0
	for _, f := range p.Fields {
		if len(f.Value) > 0xFFFF {
			return nil, fmt.Errorf("%w: field type %d is %d bytes", ErrValueTooLarge, f.Type, len(f.Value))
		}
		payloadLen += 4 + len(f.Value)
	}

	p.Header.CheckLength = int16(HeaderSize + payloadLen + PacketEndSize)

	buf := make([]byte, HeaderSize+payloadLen+PacketEndSize)
	h := &p.Header
	buf[0] = h.Version
	buf[1] = byte(h.Op)
	copy(buf[2:8], h.SwitchMAC[:])
	copy(buf[8:14], h.HostMAC[:])
	binary.BigEndian.PutUint16(buf[14:16], uint16(h.SequenceID))
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.ErrorCode))
	binary.BigEndian.PutUint16(buf[20:22], uint16(h.CheckLength))
	binary.BigEndian.PutUint16(buf[22:24], uint16(h.FragmentOffset))
	binary.BigEndian.PutUint16(buf[24:26], uint16(h.Flag))
	binary.BigEndian.PutUint16(buf[26:28], uint16(h.TokenID))
	binary.BigEndian.PutUint32(buf[28:32], uint32(h.Checksum))

	off := HeaderSize
	for _, f := range p.Fields {
		binary.BigEndian.PutUint16(buf[off:], uint16(f.Type))
		binary.BigEndian.PutUint16(buf[off+2:], uint16(len(f.Value)))
		copy(buf[off+4:], f.Value)
		off += 4 + len(f.Value)
	}

	copy(buf[off:], packetEnd[:])
	return buf, nil
}

// Unmarshal deobfuscates and parses a received frame. The input slice is
// not modified. Frames shorter than header+marker, or not terminated by
// the end marker, fail with ErrMalformedPacket.
func Unmarshal(data []byte) (*Packet, error) {
	if len(data) < HeaderSize+PacketEndSize {
		return nil, fmt.Errorf("%w: frame is %d bytes, need at least %d",
			ErrMalformedPacket, len(data), HeaderSize+PacketEndSize)
	}

	plain := Obfuscate(data)

	tail := plain[len(plain)-PacketEndSize:]
	for i := range packetEnd {
		if tail[i] != packetEnd[i] {
			return nil, fmt.Errorf("%w: missing end marker", ErrMalformedPacket)
		}
	}

	p := &Packet{Header: unmarshalHeader(plain)}

	rest := plain[HeaderSize : len(plain)-PacketEndSize]
	for len(rest) >= 4 {
		t := FieldType(binary.BigEndian.Uint16(rest[0:2]))
		n := int(binary.BigEndian.Uint16(rest[2:4]))
		if len(rest) < 4+n {
			return nil, fmt.Errorf("%w: field type %d claims %d bytes, %d remain",
				ErrMalformedPacket, t, n, len(rest)-4)
		}
		value := make([]byte, n)
		copy(value, rest[4:4+n])
		p.Fields = append(p.Fields, Field{Type: t, Value: value})
		rest = rest[4+n:]
	}

	return p, nil
}

func unmarshalHeader(buf []byte) Header {
	var h Header
	h.Version = buf[0]
	h.Op = OpCode(buf[1])
	copy(h.SwitchMAC[:], buf[2:8])
	copy(h.HostMAC[:], buf[8:14])
	h.SequenceID = int16(binary.BigEndian.Uint16(buf[14:16]))
	h.ErrorCode = int32(binary.BigEndian.Uint32(buf[16:20]))
	h.CheckLength = int16(binary.BigEndian.Uint16(buf[20:22]))
	h.FragmentOffset = int16(binary.BigEndian.Uint16(buf[22:24]))
	h.Flag = int16(binary.BigEndian.Uint16(buf[24:26]))
	h.TokenID = int16(binary.BigEndian.Uint16(buf[26:28]))
	h.Checksum = int32(binary.BigEndian.Uint32(buf[28:32]))
	return h
}
