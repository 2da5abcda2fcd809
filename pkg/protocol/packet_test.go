package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func testHeader() Header {
	return Header{
		Version:    Version,
		Op:         OpGet,
		SwitchMAC:  MAC{0x8c, 0x86, 0xdd, 0xad, 0x91, 0x82},
		HostMAC:    MAC{0x02, 0x42, 0xac, 0x11, 0x00, 0x02},
		SequenceID: 347,
		TokenID:    1021,
	}
}

func TestPacketRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		fields []Field
	}{
		{"no fields", nil},
		{"empty field", []Field{EmptyField(TypeVLANEnabled)}},
		{"token request", []Field{EmptyField(TypeTokenRequest)}},
		{"credentials", []Field{
			StringField(TypeUsername, "admin"),
			StringField(TypePassword, "hunter2"),
		}},
		{"vlan write", []Field{
			StringField(TypeUsername, "admin"),
			StringField(TypePassword, "hunter2"),
			VLANField(VLANEntry{ID: 20, Members: MaskFromPorts([]int{1, 3, 4}), Tagged: MaskFromPorts([]int{1}), Name: "Clients"}),
		}},
		{"mixed unknown type", []Field{
			{Type: 9999, Value: []byte{0xde, 0xad}},
			EmptyField(TypePVID),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Packet{Header: testHeader(), Fields: tt.fields}
			wire, err := in.Marshal()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			out, err := Unmarshal(wire)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out.Header != in.Header {
				t.Errorf("header mismatch:\n got %+v\nwant %+v", out.Header, in.Header)
			}
			if len(out.Fields) != len(tt.fields) {
				t.Fatalf("field count: got %d, want %d", len(out.Fields), len(tt.fields))
			}
			for i, f := range tt.fields {
				if out.Fields[i].Type != f.Type {
					t.Errorf("field %d type: got %d, want %d", i, out.Fields[i].Type, f.Type)
				}
				got, want := out.Fields[i].Value, f.Value
				if len(got) == 0 && len(want) == 0 {
					continue
				}
				if !bytes.Equal(got, want) {
					t.Errorf("field %d value: got %x, want %x", i, got, want)
				}
			}
		})
	}
}

func TestCheckLength(t *testing.T) {
	t.Parallel()
	p := &Packet{Header: testHeader(), Fields: []Field{
		StringField(TypeUsername, "admin"), // 4 + 6
		EmptyField(TypeTokenRequest),       // 4 + 0
	}}
	wire, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := int16(HeaderSize + 10 + 4 + PacketEndSize)
	if out.Header.CheckLength != want {
		t.Errorf("check length: got %d, want %d", out.Header.CheckLength, want)
	}
	if len(wire) != int(want) {
		t.Errorf("wire length: got %d, want %d", len(wire), want)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	t.Parallel()

	t.Run("too short", func(t *testing.T) {
		_, err := Unmarshal(make([]byte, HeaderSize))
		if !errors.Is(err, ErrMalformedPacket) {
			t.Fatalf("expected ErrMalformedPacket, got %v", err)
		}
	})

	t.Run("missing end marker", func(t *testing.T) {
		p := &Packet{Header: testHeader()}
		plain, err := p.assemble()
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		plain[len(plain)-1] ^= 0xFF // corrupt the marker
		if _, err := Unmarshal(Obfuscate(plain)); !errors.Is(err, ErrMalformedPacket) {
			t.Fatalf("expected ErrMalformedPacket, got %v", err)
		}
	})

	t.Run("truncated field", func(t *testing.T) {
		p := &Packet{Header: testHeader()}
		plain, err := p.assemble()
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		// Splice in a TLV that claims more bytes than the frame holds.
		bogus := []byte{0x02, 0x00, 0x00, 0x40}
		frame := append(append(plain[:HeaderSize:HeaderSize], bogus...), plain[HeaderSize:]...)
		if _, err := Unmarshal(Obfuscate(frame)); err == nil {
			t.Fatal("expected error for truncated field")
		}
	})

	t.Run("raw garbage", func(t *testing.T) {
		raw := bytes.Repeat([]byte{0x5a}, 64)
		if _, err := Unmarshal(raw); err == nil {
			t.Fatal("expected error for garbage input")
		}
	})
}
