package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hausnet/easysmart/pkg/reconcile"
)

const validYAML = `
switch_ip: 10.0.1.40
switch_mac: "50:c7:bf:11:22:33"
password: hunter2
mode: replace
protected_vlans: [1, 99]
vlans:
  - vlan_id: 10
    name: office
    tagged_ports: [1]
    untagged_ports: [2, 3]
  - vlan_id: 20
    name: lab
    untagged_ports: [4]
`

func TestParseValidBundle(t *testing.T) {
	t.Parallel()
	b, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Username != DefaultUsername {
		t.Errorf("username default: got %q", b.Username)
	}
	if b.SwitchIPAddr().String() != "10.0.1.40" {
		t.Errorf("switch ip: got %v", b.SwitchIPAddr())
	}
	if b.SwitchMACAddr().String() != "50:c7:bf:11:22:33" {
		t.Errorf("switch mac: got %v", b.SwitchMACAddr())
	}
	if b.ModeValue() != reconcile.ModeReplace {
		t.Errorf("mode: got %v", b.ModeValue())
	}

	spec := b.Spec()
	if len(spec.VLANs) != 2 || spec.VLANs[0].Name != "office" {
		t.Errorf("spec vlans: %+v", spec.VLANs)
	}
	if len(spec.Protected) != 2 {
		t.Errorf("protected: %+v", spec.Protected)
	}
}

func TestParseDefaultsModeToAdd(t *testing.T) {
	t.Parallel()
	b, err := Parse([]byte("switch_ip: 10.0.1.40\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.ModeValue() != reconcile.ModeAdd {
		t.Errorf("mode: got %v, want add", b.ModeValue())
	}
	if b.Spec().Protected != nil {
		t.Errorf("protected should stay nil so the engine default applies: %+v", b.Spec().Protected)
	}
}

func TestParseRejectsBadBundles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"missing password", "switch_ip: 10.0.1.40\nswitch_mac: \"50:c7:bf:11:22:33\"\n"},
		{"bad ip", "switch_ip: not-an-ip\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\n"},
		{"ipv6", "switch_ip: \"fe80::1\"\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\n"},
		{"bad mac", "switch_ip: 10.0.1.40\nswitch_mac: nope\npassword: x\n"},
		{"zero mac", "switch_ip: 10.0.1.40\nswitch_mac: \"00:00:00:00:00:00\"\npassword: x\n"},
		{"bad mode", "switch_ip: 10.0.1.40\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\nmode: merge\n"},
		{"unknown key", "switch_ip: 10.0.1.40\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\nswich_ip: typo\n"},
		{"invalid vlan", "switch_ip: 10.0.1.40\nswitch_mac: \"50:c7:bf:11:22:33\"\npassword: x\nvlans:\n  - vlan_id: 5000\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.VLANs) != 2 {
		t.Errorf("vlans: %+v", b.VLANs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}
