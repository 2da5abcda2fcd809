package reconcile

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the machine-readable outcome of one run.
type Result struct {
	RunID        string `json:"run_id"`
	Changed      bool   `json:"changed"`
	DryRun       bool   `json:"dry_run,omitempty"`
	Message      string `json:"message"`
	Created      []int  `json:"created_vlans,omitempty"`
	Updated      []int  `json:"updated_vlans,omitempty"`
	Deleted      []int  `json:"deleted_vlans,omitempty"`
	PortsTouched []int  `json:"ports_touched,omitempty"`
}

func summarize(plan Plan, dryRun bool) Result {
	r := Result{
		RunID:        uuid.NewString(),
		Changed:      plan.Changed(),
		DryRun:       dryRun,
		Created:      sortedIDs(plan.Creates),
		Updated:      sortedIDs(plan.Updates),
		Deleted:      sortedIDs(plan.Deletes),
		PortsTouched: touchedPorts(plan),
	}
	switch {
	case !r.Changed:
		r.Message = "device already matches the desired configuration"
	case dryRun:
		r.Message = fmt.Sprintf("would create %d, update %d, delete %d vlans", len(r.Created), len(r.Updated), len(r.Deleted))
	default:
		r.Message = fmt.Sprintf("created %d, updated %d, deleted %d vlans", len(r.Created), len(r.Updated), len(r.Deleted))
	}
	return r
}

func touchedPorts(plan Plan) []int {
	set := map[int]bool{}
	for _, e := range plan.Creates {
		for _, p := range e.Members.Ports() {
			set[p] = true
		}
	}
	for _, e := range plan.Updates {
		for _, p := range e.Members.Ports() {
			set[p] = true
		}
	}
	for _, pv := range plan.PVIDs {
		set[pv.Port] = true
	}
	ports := make([]int, 0, len(set))
	for p := range set {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Apply executes a plan against the device. Writes happen in dependency
// order: mode flag first, then VLAN entries, then PVIDs. With dryRun set,
// nothing is written and the result describes what would have happened.
func Apply(d Device, plan Plan, dryRun bool, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	result := summarize(plan, dryRun)
	if dryRun || !plan.Changed() {
		log.Info("reconcile finished without writes",
			zap.String("run_id", result.RunID),
			zap.Bool("dry_run", dryRun),
			zap.Bool("changed", result.Changed))
		return result, nil
	}

	if plan.EnableVLANMode {
		if err := d.SetVLANEnabled(true); err != nil {
			return result, fmt.Errorf("enable vlan mode: %w", err)
		}
	}
	if err := d.SetVLANs(plan.Creates); err != nil {
		return result, err
	}
	if err := d.SetVLANs(plan.Updates); err != nil {
		return result, err
	}
	if err := d.SetPVIDs(plan.PVIDs); err != nil {
		return result, err
	}

	log.Info("reconcile applied",
		zap.String("run_id", result.RunID),
		zap.Ints("created", result.Created),
		zap.Ints("updated", result.Updated),
		zap.Ints("deleted", result.Deleted),
		zap.Ints("ports", result.PortsTouched))
	return result, nil
}

// Run reads the device state, plans and applies in one call.
func Run(d Device, spec Spec, dryRun bool, log *zap.Logger) (Result, error) {
	observed, err := ReadState(d)
	if err != nil {
		return Result{}, fmt.Errorf("read device state: %w", err)
	}
	plan, err := ComputePlan(spec, observed)
	if err != nil {
		return Result{}, err
	}
	return Apply(d, plan, dryRun, log)
}
