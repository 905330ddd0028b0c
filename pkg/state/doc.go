/*
Package state owns the persisted state of the framework.

The Registry wraps three backing-store namespaces (tasks, volumes,
scheduler identity) and is their single writer. Task records follow the
cluster manager's lifecycle: created on launch, rewritten on every status
event, deleted the moment a terminal status arrives so the host and role
slot free up immediately. Volume records are never auto-deleted; a volume
whose owning task record has disappeared is reported as orphaned for
advisory cleanup.

Status merging preserves labels: a label-bearing status on record is
never regressed to a label-less one by a routine refresh. This is what
makes name-node initialization tracking survive out-of-order and
duplicated status delivery.

The package also defines AcquisitionPhase, the ordered bootstrap stages
the constraint provider walks: journal quorum, name-node pair, name-node
initialization, data nodes, steady state.
*/
package state
