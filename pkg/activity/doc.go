// Package activity carries resource lifecycle events from a store session to
// hooks. Hooks receive normalized events; the Emitter applies a default
// channel and does nothing when no hook is configured.
package activity
