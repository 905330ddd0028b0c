/*
Package types defines the shared data model for Reservoir.

It covers the two durable record kinds (TaskRecord, VolumeRecord), the
status/label model fed back from the cluster manager, and the offer and
resource shapes the constraint engine evaluates. Records are serialized
as JSON into the backing store; fields are tagged accordingly and new
fields must only ever be appended so that old records remain readable
across restarts.
*/
package types
