package protocol

import (
	"reflect"
	"testing"
)

func TestPortMaskRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		ports []int
	}{
		{"empty", nil},
		{"single low", []int{1}},
		{"single high", []int{32}},
		{"access ports", []int{3, 4, 5, 6, 7, 8}},
		{"sparse", []int{1, 8, 17, 32}},
		{"all", func() []int {
			p := make([]int, 32)
			for i := range p {
				p[i] = i + 1
			}
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskFromPorts(tt.ports).Ports()
			if len(tt.ports) == 0 {
				if got != nil {
					t.Fatalf("got %v, want empty", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.ports) {
				t.Errorf("round trip: got %v, want %v", got, tt.ports)
			}
		})
	}
}

func TestPortMaskBits(t *testing.T) {
	t.Parallel()
	if m := MaskFromPorts([]int{1}); m != 0x1 {
		t.Errorf("port 1: got %#x, want 0x1", uint32(m))
	}
	if m := MaskFromPorts([]int{8}); m != 0x80 {
		t.Errorf("port 8: got %#x, want 0x80", uint32(m))
	}
	if m := MaskFromPorts([]int{32}); m != 0x80000000 {
		t.Errorf("port 32: got %#x, want 0x80000000", uint32(m))
	}
}

func TestPortMaskIgnoresOutOfRange(t *testing.T) {
	t.Parallel()
	if m := MaskFromPorts([]int{0, 33, -4}); m != 0 {
		t.Errorf("out of range ports produced mask %#x", uint32(m))
	}
	if MaskFromPorts([]int{5}).Has(0) || MaskFromPorts([]int{5}).Has(33) {
		t.Error("Has accepted an out-of-range port")
	}
}

func TestPortMaskHas(t *testing.T) {
	t.Parallel()
	m := MaskFromPorts([]int{2, 7})
	if !m.Has(2) || !m.Has(7) {
		t.Error("Has missed a member port")
	}
	if m.Has(1) || m.Has(8) {
		t.Error("Has reported a non-member port")
	}
}
