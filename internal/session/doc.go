// Package session persists review sessions in SQLite and owns their
// lifecycle state machine.
//
// A session moves draft -> validated -> submitting -> submitted, with
// submission_failed as the retry-eligible failure state. Transitions are
// checked against a fixed table; in particular there is no path from draft to
// submitting that bypasses the explicit validation commit. The Store holds
// one row per session, form field, transcript segment, and submission
// attempt, plus the durable offline queue, so an in-flight failure survives a
// process restart without re-running extraction.
//
// Treat this package as the single source of truth for lifecycle semantics;
// new modes or columns mean updating schema.sql and bumping schemaVersion.
package session
