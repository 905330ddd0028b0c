package scheduler

import (
	"github.com/cuemby/reservoir/pkg/config"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/types"
)

// Constraint carries the resource thresholds and expected volume identity
// for placing one task of one role during one phase. Sizing comes from
// configuration; the three predicates are evaluated in increasing
// strictness to pick between requesting a reservation, requesting volume
// creation, and launching.
type Constraint struct {
	Role  types.Role
	Phase state.AcquisitionPhase

	CPUs   float64
	MemMB  float64
	DiskMB float64

	ReservationRole string
	Principal       string

	// ExpectedVolume is the volume identity to reuse on this role's next
	// placement, when one was already reserved. Nil means no volume exists
	// yet and IsSatisfiedForVolumes can never pass.
	ExpectedVolume *types.VolumeRecord
}

func newConstraint(cfg *config.Config, phase state.AcquisitionPhase, role types.Role, vol *types.VolumeRecord) *Constraint {
	return &Constraint{
		Role:            role,
		Phase:           phase,
		CPUs:            cfg.NeededCPUs(role),
		MemMB:           cfg.NeededMemMB(role),
		DiskMB:          cfg.NeededDiskMB(role),
		ReservationRole: cfg.Role,
		Principal:       cfg.Principal,
		ExpectedVolume:  vol,
	}
}

// CanBeSatisfied reports whether the offer's unreserved resources meet the
// thresholds in every dimension. There is no substitution across resource
// kinds; a shortfall in any one dimension rejects the whole offer.
func (c *Constraint) CanBeSatisfied(offer *types.Offer) bool {
	return offer.UnreservedScalar(types.ResourceCPUs) >= c.CPUs &&
		offer.UnreservedScalar(types.ResourceMem) >= c.MemMB &&
		offer.UnreservedScalar(types.ResourceDisk) >= c.DiskMB
}

// IsSatisfiedForReservations reports whether the offer carries enough
// resources already reserved under this framework's role and principal,
// and no persistent volume other than the expected one. An offer whose
// disk was already carved into a foreign volume is of no use to this
// constraint and must not be treated as reservation-ready.
func (c *Constraint) IsSatisfiedForReservations(offer *types.Offer) bool {
	if !c.reservedResourcesSufficient(offer) {
		return false
	}
	for _, disk := range offer.PersistentDisks() {
		if !c.matchesExpectedVolume(disk) {
			return false
		}
	}
	return true
}

// IsSatisfiedForVolumes reports whether the offer carries sufficient
// reserved resources and a persistent volume with exactly the expected
// persistence id. Reserved-but-volume-less offers and offers with a
// mismatched id are rejected.
func (c *Constraint) IsSatisfiedForVolumes(offer *types.Offer) bool {
	if c.ExpectedVolume == nil {
		return false
	}
	if !c.reservedResourcesSufficient(offer) {
		return false
	}
	for _, disk := range offer.PersistentDisks() {
		if disk.Disk.Persistence.ID == c.ExpectedVolume.PersistenceID {
			return true
		}
	}
	return false
}

func (c *Constraint) reservedResourcesSufficient(offer *types.Offer) bool {
	role, principal := c.ReservationRole, c.Principal
	return offer.ReservedScalar(types.ResourceCPUs, role, principal) >= c.CPUs &&
		offer.ReservedScalar(types.ResourceMem, role, principal) >= c.MemMB &&
		offer.ReservedScalar(types.ResourceDisk, role, principal) >= c.DiskMB
}

func (c *Constraint) matchesExpectedVolume(disk types.Resource) bool {
	return c.ExpectedVolume != nil &&
		disk.Disk.Persistence.ID == c.ExpectedVolume.PersistenceID
}
