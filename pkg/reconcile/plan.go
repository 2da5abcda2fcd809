package reconcile

import "github.com/hausnet/easysmart/pkg/protocol"

// Plan is the set of writes needed to move a device to the desired state.
// Deletes carry no writes; they record entries that disappear because
// replace mode stops rewriting them.
type Plan struct {
	EnableVLANMode bool
	Creates        []protocol.VLANEntry
	Updates        []protocol.VLANEntry
	Deletes        []protocol.VLANEntry
	PVIDs          []protocol.PortVLAN
}

// Changed reports whether applying the plan would alter the device.
// Deletions count: the device table differs even though no write is issued.
func (p Plan) Changed() bool {
	return p.EnableVLANMode ||
		len(p.Creates) > 0 || len(p.Updates) > 0 || len(p.Deletes) > 0 ||
		len(p.PVIDs) > 0
}

// entriesEqual ignores the id, which the caller matched on already.
func entriesEqual(a, b protocol.VLANEntry) bool {
	return a.Members == b.Members && a.Tagged == b.Tagged && a.Name == b.Name
}

// ComputePlan diffs the desired spec against the observed device state.
// Protected VLANs are never created, updated or deleted, whatever the
// desired set says about them.
func ComputePlan(spec Spec, observed Observed) (Plan, error) {
	if err := spec.Validate(); err != nil {
		return Plan{}, err
	}
	protected := spec.protectedSet()

	byID := make(map[int]protocol.VLANEntry, len(observed.VLANs))
	for _, e := range observed.VLANs {
		byID[int(e.ID)] = e
	}

	var plan Plan
	desired := map[int]bool{}
	for _, v := range spec.VLANs {
		desired[v.ID] = true
		if protected[v.ID] {
			continue
		}
		want := v.Entry()
		have, exists := byID[v.ID]
		switch {
		case !exists:
			plan.Creates = append(plan.Creates, want)
		case !entriesEqual(have, want):
			plan.Updates = append(plan.Updates, want)
		}
	}

	if spec.Mode == ModeReplace {
		for _, e := range observed.VLANs {
			if !desired[int(e.ID)] && !protected[int(e.ID)] {
				plan.Deletes = append(plan.Deletes, e)
			}
		}
	}

	// PVIDs follow the untagged ports of every entry being written. Ports
	// already carrying the right PVID are skipped.
	currentPVID := make(map[int]uint16, len(observed.PVIDs))
	for _, pv := range observed.PVIDs {
		currentPVID[pv.Port] = pv.VLAN
	}
	for _, e := range append(append([]protocol.VLANEntry{}, plan.Creates...), plan.Updates...) {
		for _, port := range e.UntaggedPorts() {
			if currentPVID[port] == e.ID {
				continue
			}
			plan.PVIDs = append(plan.PVIDs, protocol.PortVLAN{Port: port, VLAN: e.ID})
			currentPVID[port] = e.ID
		}
	}

	// VLAN mode only gets switched on when there is something to write;
	// a no-op run against a device with the mode off stays a no-op.
	plan.EnableVLANMode = !observed.VLANEnabled && (len(plan.Creates) > 0 || len(plan.Updates) > 0)

	return plan, nil
}
