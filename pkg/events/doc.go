// Package events provides an in-process broker for scheduler events:
// phase advancement, launches, terminal statuses and offer decisions.
// Subscribers with full buffers are skipped, never blocked on.
package events
