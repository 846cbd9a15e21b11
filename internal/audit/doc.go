// Package audit defines the event contract every mutating pipeline operation
// reports through.
//
// Storage and encryption of emitted events are external concerns; this
// package only fixes the event shape and provides a slog-backed emitter for
// local operation plus a no-op emitter for tests.
package audit
