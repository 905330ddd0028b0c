// Package config loads and validates the framework configuration: per-role
// target counts and sizing, the reservation role and principal, and the
// coordination quorum address. Configuration errors are fatal only at
// startup; nothing in this package is reloaded at runtime.
package config
