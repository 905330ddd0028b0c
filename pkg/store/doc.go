/*
Package store provides the versioned key->bytes persistence layer backing
the task, volume and scheduler registries.

Each namespace exposes fetch/mutate/store/expunge/list-keys over opaque
byte blobs. Every value carries a version; Store is compare-and-swap, so
a writer racing another writer on the same key gets ErrConflict instead
of silently overwriting. Namespaces are rooted under the framework name
and their buckets are created lazily on first write, which lets callers
distinguish "never initialized" (ErrNotFound from ListKeys) from "empty".
*/
package store
