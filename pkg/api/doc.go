/*
Package api exposes the HTTP+JSON bridge between the scheduler and the
external cluster-manager adapter process, plus read-only inspection and
metrics endpoints.

The bridge is synchronous: an offer POSTed to /v1/offers blocks
until the scheduler decides, and the response body carries the action
(decline, reserve, create-volume or launch) with its payload. Status
events POSTed to /v1/status are acknowledged immediately and applied
asynchronously. The wire protocol to the cluster manager itself lives in
the adapter, not here.
*/
package api
