package state

import "github.com/cuemby/reservoir/pkg/types"

// AcquisitionPhase is the ordered bootstrap stage gating which role the
// scheduler is currently trying to place. Advancement is monotonic; the
// phase machine never moves backwards even if a later failure drops a
// role below target (the provider re-derives the phase from live counts
// on every pass instead).
type AcquisitionPhase int

const (
	// PhaseJournalNodes fills the journal quorum.
	PhaseJournalNodes AcquisitionPhase = iota

	// PhaseNameNodes places the fixed name-node pair.
	PhaseNameNodes

	// PhaseNameNodeInit waits for both name-node slots to report the
	// initialization label. No placement happens in this phase.
	PhaseNameNodeInit

	// PhaseDataNodes fills the data-node fleet.
	PhaseDataNodes

	// PhaseSteadyState means every phase is satisfied; offers are only
	// used for incidental maintenance.
	PhaseSteadyState
)

func (p AcquisitionPhase) String() string {
	switch p {
	case PhaseJournalNodes:
		return "journal-nodes"
	case PhaseNameNodes:
		return "name-nodes"
	case PhaseNameNodeInit:
		return "name-node-init"
	case PhaseDataNodes:
		return "data-nodes"
	case PhaseSteadyState:
		return "steady-state"
	}
	return "unknown"
}

// Next returns the following phase, saturating at steady state.
func (p AcquisitionPhase) Next() AcquisitionPhase {
	if p >= PhaseSteadyState {
		return PhaseSteadyState
	}
	return p + 1
}

// PlacementRole returns the role this phase is filling, or false for
// phases that place nothing.
func (p AcquisitionPhase) PlacementRole() (types.Role, bool) {
	switch p {
	case PhaseJournalNodes:
		return types.RoleJournal, true
	case PhaseNameNodes:
		return types.RoleName, true
	case PhaseDataNodes:
		return types.RoleData, true
	}
	return "", false
}
