package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
)

// FieldType identifies a TLV payload field on the wire.
type FieldType uint16

// Field types understood by this protocol revision.
const (
	TypeDeviceType   FieldType = 1    // model string
	TypeHostname     FieldType = 2    // device hostname
	TypeMAC          FieldType = 3    // device hardware address
	TypeIPAddr       FieldType = 4    // IPv4 address
	TypeIPMask       FieldType = 5    // IPv4 netmask
	TypeGateway      FieldType = 6    // IPv4 gateway
	TypeFirmware     FieldType = 7    // firmware identifier
	TypeHardware     FieldType = 8    // hardware identifier
	TypeDHCP         FieldType = 9    // DHCP client enabled
	TypeNumPorts     FieldType = 10   // port count
	TypeUsername     FieldType = 512  // current username
	TypeNewUsername  FieldType = 513  // replacement username
	TypePassword     FieldType = 514  // current password
	TypeNewPassword  FieldType = 515  // replacement password
	TypeTokenRequest FieldType = 2305 // empty; makes the device issue a token
	TypePortMap      FieldType = 4096 // raw port bitmap bytes
	TypeVLANEnabled  FieldType = 8704 // 802.1Q VLAN mode flag
	TypeVLAN         FieldType = 8705 // VLAN composite entry
	TypePVID         FieldType = 8706 // port PVID composite entry
	TypeVLANFiller   FieldType = 8707 // unused filler field
)

// Kind is the decoded shape of a field value. The set is closed: a type id
// missing from the table decodes as KindUnknown rather than being dropped,
// so newer firmware fields stay visible to callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindString       // NUL-terminated ASCII
	KindHex          // raw bytes rendered as colon-separated hex
	KindIP           // 4-byte IPv4 address
	KindBool         // absent or a single byte, nonzero = true
	KindDec          // big-endian unsigned integer
	KindAction       // empty marker value, carries no data
	KindVLAN         // VLAN composite: id, member mask, tagged mask, name
	KindPVID         // PVID composite: port, vlan id
)

// fieldKinds maps every known type id to its decoded shape.
var fieldKinds = map[FieldType]Kind{
	TypeDeviceType:   KindString,
	TypeHostname:     KindString,
	TypeMAC:          KindHex,
	TypeIPAddr:       KindIP,
	TypeIPMask:       KindIP,
	TypeGateway:      KindIP,
	TypeFirmware:     KindString,
	TypeHardware:     KindString,
	TypeDHCP:         KindBool,
	TypeNumPorts:     KindDec,
	TypeUsername:     KindString,
	TypeNewUsername:  KindString,
	TypePassword:     KindString,
	TypeNewPassword:  KindString,
	TypeTokenRequest: KindAction,
	TypePortMap:      KindHex,
	TypeVLANEnabled:  KindHex,
	TypeVLAN:         KindVLAN,
	TypePVID:         KindPVID,
	TypeVLANFiller:   KindString,
}

// Field is one TLV payload entry. Value holds the raw wire bytes; the
// typed accessors interpret them according to the field's kind.
type Field struct {
	Type  FieldType
	Value []byte
}

// Kind returns the decoded shape for the field's type id.
func (f Field) Kind() Kind { return fieldKinds[f.Type] }

// Known reports whether the type id is in this revision's type table.
func (f Field) Known() bool {
	_, ok := fieldKinds[f.Type]
	return ok
}

// ASCII interprets the value as NUL-terminated ASCII. Deliberately not
// named String: most field kinds are not text, and a Stringer rendering
// them as ASCII would leak garbage into %v output.
func (f Field) ASCII() string {
	for i, b := range f.Value {
		if b == 0 {
			return string(f.Value[:i])
		}
	}
	return string(f.Value)
}

// Bool interprets the value as an optional boolean: an empty value is
// false, a single nonzero byte is true.
func (f Field) Bool() bool {
	return len(f.Value) > 0 && f.Value[0] != 0
}

// Uint interprets the value as a big-endian unsigned integer of any width
// up to 8 bytes.
func (f Field) Uint() uint64 {
	var v uint64
	for _, b := range f.Value {
		v = v<<8 | uint64(b)
	}
	return v
}

// IP interprets the value as an IPv4 address, or nil if it is not 4 bytes.
func (f Field) IP() net.IP {
	if len(f.Value) != net.IPv4len {
		return nil
	}
	return net.IPv4(f.Value[0], f.Value[1], f.Value[2], f.Value[3])
}

// Nonzero reports whether any value byte is set; this is how hex-rendered
// flags such as the VLAN mode field are read.
func (f Field) Nonzero() bool {
	for _, b := range f.Value {
		if b != 0 {
			return true
		}
	}
	return false
}

// VLANEntry is the decoded form of a TypeVLAN composite.
type VLANEntry struct {
	ID      uint16
	Members PortMask // tagged and untagged members together
	Tagged  PortMask
	Name    string
}

// UntaggedPorts returns the member ports that are not tagged.
func (e VLANEntry) UntaggedPorts() []int {
	return (e.Members &^ e.Tagged).Ports()
}

// vlanFixedSize is the composite's fixed prefix: id(2) + members(4) + tagged(4).
const vlanFixedSize = 10

// VLANNameMax is the longest VLAN name the firmware stores.
const VLANNameMax = 32

// VLAN decodes a TypeVLAN composite value.
func (f Field) VLAN() (VLANEntry, error) {
	if len(f.Value) < vlanFixedSize {
		return VLANEntry{}, fmt.Errorf("%w: vlan field is %d bytes, need %d", ErrBadComposite, len(f.Value), vlanFixedSize)
	}
	e := VLANEntry{
		ID:      binary.BigEndian.Uint16(f.Value[0:2]),
		Members: PortMask(binary.BigEndian.Uint32(f.Value[2:6])),
		Tagged:  PortMask(binary.BigEndian.Uint32(f.Value[6:10])),
	}
	name := f.Value[vlanFixedSize:]
	for i, b := range name {
		if b == 0 {
			name = name[:i]
			break
		}
	}
	e.Name = string(name)
	return e, nil
}

// PortVLAN is the decoded form of a TypePVID composite.
type PortVLAN struct {
	Port int
	VLAN uint16
}

// PVID decodes a TypePVID composite value.
func (f Field) PVID() (PortVLAN, error) {
	if len(f.Value) < 3 {
		return PortVLAN{}, fmt.Errorf("%w: pvid field is %d bytes, need 3", ErrBadComposite, len(f.Value))
	}
	return PortVLAN{
		Port: int(f.Value[0]),
		VLAN: binary.BigEndian.Uint16(f.Value[1:3]),
	}, nil
}

// EmptyField builds a zero-length field; Get queries use these to name the
// table they want back.
func EmptyField(t FieldType) Field { return Field{Type: t} }

// StringField builds a NUL-terminated ASCII field.
func StringField(t FieldType, s string) Field {
	return Field{Type: t, Value: append([]byte(s), 0)}
}

// BoolField builds a single-byte boolean field.
func BoolField(t FieldType, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{Type: t, Value: []byte{b}}
}

// IPField builds a 4-byte IPv4 field.
func IPField(t FieldType, ip net.IP) (Field, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Field{}, fmt.Errorf("not an ipv4 address: %v", ip)
	}
	return Field{Type: t, Value: []byte(v4)}, nil
}

// VLANField encodes a TypeVLAN composite. The name is truncated to
// VLANNameMax bytes, which is all the firmware keeps.
func VLANField(e VLANEntry) Field {
	name := e.Name
	if len(name) > VLANNameMax {
		name = name[:VLANNameMax]
	}
	v := make([]byte, vlanFixedSize, vlanFixedSize+len(name)+1)
	binary.BigEndian.PutUint16(v[0:2], e.ID)
	binary.BigEndian.PutUint32(v[2:6], uint32(e.Members))
	binary.BigEndian.PutUint32(v[6:10], uint32(e.Tagged))
	v = append(v, name...)
	v = append(v, 0)
	return Field{Type: TypeVLAN, Value: v}
}

// PVIDField encodes a TypePVID composite.
func PVIDField(pv PortVLAN) Field {
	v := make([]byte, 3)
	v[0] = byte(pv.Port)
	binary.BigEndian.PutUint16(v[1:3], pv.VLAN)
	return Field{Type: TypePVID, Value: v}
}
