// Package params loads and validates the YAML parameter bundle that drives
// a run: which switch to talk to, the credentials, and the desired VLAN
// table.
package params

import (
	"errors"
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/hausnet/easysmart/pkg/protocol"
	"github.com/hausnet/easysmart/pkg/reconcile"
)

// ErrInvalidParams flags a bundle that cannot drive a run.
var ErrInvalidParams = errors.New("invalid parameters")

// DefaultUsername is assumed when the bundle names no account.
const DefaultUsername = "admin"

// Bundle is the parameter file as written by the operator.
type Bundle struct {
	SwitchIP       string           `yaml:"switch_ip"`
	SwitchMAC      string           `yaml:"switch_mac"`
	Username       string           `yaml:"username"`
	Password       string           `yaml:"password"`
	Mode           string           `yaml:"mode"`
	ProtectedVLANs []int            `yaml:"protected_vlans"`
	VLANs          []reconcile.VLAN `yaml:"vlans"`

	switchIP  net.IP
	switchMAC protocol.MAC
	mode      reconcile.Mode
}

// Load reads and validates a bundle from a YAML file.
func Load(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidParams, path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a bundle from YAML bytes.
func Parse(raw []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.UnmarshalStrict(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bundle) validate() error {
	if b.Username == "" {
		b.Username = DefaultUsername
	}
	if b.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidParams)
	}

	b.switchIP = net.ParseIP(b.SwitchIP)
	if b.switchIP == nil || b.switchIP.To4() == nil {
		return fmt.Errorf("%w: switch_ip %q is not an ipv4 address", ErrInvalidParams, b.SwitchIP)
	}

	mac, err := protocol.ParseMAC(b.SwitchMAC)
	if err != nil {
		return fmt.Errorf("%w: switch_mac: %v", ErrInvalidParams, err)
	}
	if mac.IsZero() {
		return fmt.Errorf("%w: switch_mac must not be all zero", ErrInvalidParams)
	}
	b.switchMAC = mac

	b.mode, err = reconcile.ParseMode(b.Mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	spec := b.Spec()
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// SwitchIPAddr returns the parsed device address.
func (b *Bundle) SwitchIPAddr() net.IP { return b.switchIP.To4() }

// SwitchMACAddr returns the parsed device hardware address.
func (b *Bundle) SwitchMACAddr() protocol.MAC { return b.switchMAC }

// ModeValue returns the parsed reconciliation mode.
func (b *Bundle) ModeValue() reconcile.Mode { return b.mode }

// Spec builds the reconciliation input from the bundle.
func (b *Bundle) Spec() reconcile.Spec {
	return reconcile.Spec{
		VLANs:     b.VLANs,
		Mode:      b.mode,
		Protected: b.ProtectedVLANs,
	}
}
