package policy

import "fleetpilot/internal/domain/fleet"

type Readiness string

const (
	Ready    Readiness = "ready"
	NotReady Readiness = "not_ready"
)

// CheckStoppedForResize is a hard precondition: an instance type can only be
// changed while the instance is fully stopped.
func CheckStoppedForResize(state string) Readiness {
	if state == fleet.InstanceStateStopped {
		return Ready
	}
	return NotReady
}

// CheckVolumeDetached reports whether a volume can be deleted.
func CheckVolumeDetached(v fleet.Volume) Readiness {
	if len(v.Attachments) == 0 {
		return Ready
	}
	return NotReady
}
