// Package pipeline coordinates the assessment lifecycle from transcript
// ingestion through validation to portal submission.
//
// The Coordinator serializes all mutations per session, persists every change
// through the session store, and emits one audit event per mutating
// operation. Callers from different goroutines may address different sessions
// concurrently; operations on the same session queue behind its lock.
package pipeline
