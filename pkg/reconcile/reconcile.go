// Package reconcile computes and applies the minimal set of writes that
// brings a switch's VLAN configuration to a desired state. The protocol has
// no delete primitive; in replace mode, entries absent from the desired set
// are dropped simply by not being rewritten, which the firmware treats as
// removal once the full desired table has been written.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hausnet/easysmart/pkg/protocol"
)

// ErrInvalidVLAN flags a desired entry that cannot be expressed on the wire.
var ErrInvalidVLAN = errors.New("invalid vlan definition")

// VLAN is one desired table entry. Tagged and untagged port lists are
// disjoint; a port in both is a definition error, not something to resolve.
type VLAN struct {
	ID            int    `yaml:"vlan_id"`
	Name          string `yaml:"name"`
	TaggedPorts   []int  `yaml:"tagged_ports"`
	UntaggedPorts []int  `yaml:"untagged_ports"`
}

// Validate checks the entry against the wire format's limits.
func (v VLAN) Validate() error {
	if v.ID < 1 || v.ID > 4094 {
		return fmt.Errorf("%w: vlan id %d outside 1..4094", ErrInvalidVLAN, v.ID)
	}
	if len(v.Name) > protocol.VLANNameMax {
		return fmt.Errorf("%w: vlan %d name %q longer than %d bytes", ErrInvalidVLAN, v.ID, v.Name, protocol.VLANNameMax)
	}
	tagged := map[int]bool{}
	for _, p := range v.TaggedPorts {
		if p < 1 || p > 32 {
			return fmt.Errorf("%w: vlan %d tagged port %d outside 1..32", ErrInvalidVLAN, v.ID, p)
		}
		tagged[p] = true
	}
	for _, p := range v.UntaggedPorts {
		if p < 1 || p > 32 {
			return fmt.Errorf("%w: vlan %d untagged port %d outside 1..32", ErrInvalidVLAN, v.ID, p)
		}
		if tagged[p] {
			return fmt.Errorf("%w: vlan %d port %d is both tagged and untagged", ErrInvalidVLAN, v.ID, p)
		}
	}
	return nil
}

// Entry converts the definition to its wire form.
func (v VLAN) Entry() protocol.VLANEntry {
	tagged := protocol.MaskFromPorts(v.TaggedPorts)
	untagged := protocol.MaskFromPorts(v.UntaggedPorts)
	return protocol.VLANEntry{
		ID:      uint16(v.ID),
		Members: tagged | untagged,
		Tagged:  tagged,
		Name:    v.Name,
	}
}

// Mode selects how entries on the device but absent from the desired set
// are treated.
type Mode int

const (
	// ModeAdd leaves unlisted device entries alone.
	ModeAdd Mode = iota
	// ModeReplace drops unlisted, unprotected device entries.
	ModeReplace
)

func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "add"
}

// ParseMode maps the configuration strings to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "add":
		return ModeAdd, nil
	case "replace":
		return ModeReplace, nil
	default:
		return ModeAdd, fmt.Errorf("unknown mode %q, want add or replace", s)
	}
}

// Spec is the full desired state for one reconciliation run.
type Spec struct {
	VLANs     []VLAN
	Mode      Mode
	Protected []int // vlan ids never created, updated or deleted; default {1}
}

// DefaultProtected is applied when the caller names no protected VLANs.
// VLAN 1 is the factory default carrying all untagged traffic; touching it
// remotely is how a switch gets bricked.
var DefaultProtected = []int{1}

// Validate checks every desired entry and rejects duplicate ids.
func (s Spec) Validate() error {
	seen := map[int]bool{}
	for _, v := range s.VLANs {
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: vlan id %d listed twice", ErrInvalidVLAN, v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

func (s Spec) protectedSet() map[int]bool {
	ids := s.Protected
	if ids == nil {
		ids = DefaultProtected
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Observed is the device state a plan is computed against.
type Observed struct {
	VLANEnabled bool
	VLANs       []protocol.VLANEntry
	PVIDs       []protocol.PortVLAN
}

// Device is the write surface a plan is applied to. *client.Client
// satisfies it.
type Device interface {
	VLANEnabled() (bool, error)
	SetVLANEnabled(enabled bool) error
	VLANs() ([]protocol.VLANEntry, error)
	SetVLANs(entries []protocol.VLANEntry) error
	PVIDs() ([]protocol.PortVLAN, error)
	SetPVIDs(pvids []protocol.PortVLAN) error
}

// ReadState captures the device state a plan needs.
func ReadState(d Device) (Observed, error) {
	enabled, err := d.VLANEnabled()
	if err != nil {
		return Observed{}, err
	}
	vlans, err := d.VLANs()
	if err != nil {
		return Observed{}, err
	}
	pvids, err := d.PVIDs()
	if err != nil {
		return Observed{}, err
	}
	return Observed{VLANEnabled: enabled, VLANs: vlans, PVIDs: pvids}, nil
}

func sortedIDs(entries []protocol.VLANEntry) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, int(e.ID))
	}
	sort.Ints(ids)
	return ids
}
