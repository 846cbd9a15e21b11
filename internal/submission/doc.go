// Package submission delivers validated assessments to the external portal.
//
// The gateway snapshots a payload at attempt creation and retries transient
// failures with bounded exponential backoff; the attempt identifier doubles
// as the idempotency key so redelivery cannot double-create portal records.
// When the portal is unreachable the payload lands on a durable offline queue
// that the drainer replays in per-session order once connectivity returns.
package submission
