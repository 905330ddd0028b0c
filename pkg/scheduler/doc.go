/*
Package scheduler implements the offer-matching constraint engine.

The Provider walks the acquisition phases in order: journal quorum, the
name-node pair, name-node initialization, then data nodes. For the phase
currently below target it yields a Constraint sized from configuration,
carrying the volume identity to reuse when one was already reserved for
the role.

Each Constraint is evaluated against an offer in increasing strictness:

	CanBeSatisfied            unreserved cpu/mem/disk meet thresholds
	IsSatisfiedForReservations  resources reserved under our role/principal
	IsSatisfiedForVolumes       a persistent volume with the expected id

and the Scheduler turns the first predicate that passes, walking from the
strictest down, into an action: launch on a volume-ready offer, create a
volume on a reserved offer, reserve a fresh offer, or decline. Admission
control is best-effort: state is read immediately before acting and the
cluster manager's task-uniqueness guarantees backstop the inherent
read-then-act window.

The Driver interface is the seam to the cluster manager transport, which
lives outside this repository.
*/
package scheduler
