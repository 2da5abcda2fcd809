package protocol

import (
	"bytes"
	"testing"
)

func TestObfuscateFrameSelfInverse(t *testing.T) {
	t.Parallel()
	// The keystream depends only on byte position, so a second pass over a
	// full frame must restore the plaintext exactly.
	p := &Packet{Header: testHeader(), Fields: []Field{
		StringField(TypeUsername, "admin"),
		VLANField(VLANEntry{ID: 10, Members: MaskFromPorts([]int{1, 2}), Tagged: MaskFromPorts([]int{1}), Name: "Management"}),
	}}
	plain, err := p.assemble()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	once := Obfuscate(plain)
	if bytes.Equal(once, plain) {
		t.Fatal("transform left the frame unchanged")
	}
	twice := Obfuscate(once)
	if !bytes.Equal(twice, plain) {
		t.Fatalf("double transform did not restore plaintext:\n got %x\nwant %x", twice, plain)
	}
}

func TestObfuscateSelfInverseAnyLength(t *testing.T) {
	t.Parallel()
	for n := 0; n <= 300; n += 7 {
		in := make([]byte, n)
		for i := range in {
			in[i] = byte(i * 31)
		}
		out := Obfuscate(Obfuscate(in))
		if !bytes.Equal(out, in) {
			t.Fatalf("len %d: double transform did not restore input", n)
		}
	}
}

func TestObfuscateDeterministic(t *testing.T) {
	t.Parallel()
	in := []byte("the same bytes every time")
	a := Obfuscate(in)
	b := Obfuscate(in)
	if !bytes.Equal(a, b) {
		t.Fatal("transform is not deterministic")
	}
	if !bytes.Equal(in, []byte("the same bytes every time")) {
		t.Fatal("transform modified its input")
	}
}

func TestObfuscatePositionDependence(t *testing.T) {
	t.Parallel()
	// Identical plaintext bytes at different offsets must encode
	// differently; otherwise the keystream is not advancing.
	in := bytes.Repeat([]byte{0x00}, 64)
	out := Obfuscate(in)
	seen := make(map[byte]bool)
	distinct := 0
	for _, b := range out {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}
	if distinct < 8 {
		t.Fatalf("keystream looks static: only %d distinct bytes in 64", distinct)
	}
}
