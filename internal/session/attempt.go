package session

import (
	"strings"
	"time"
)

// AttemptStatus represents the state of one submission attempt.
type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptSuccess  AttemptStatus = "success"
	AttemptFailure  AttemptStatus = "failure"
	AttemptRetrying AttemptStatus = "retrying"
)

// ParseAttemptStatus converts a string into a known AttemptStatus.
func ParseAttemptStatus(value string) (AttemptStatus, bool) {
	switch AttemptStatus(strings.ToLower(strings.TrimSpace(value))) {
	case AttemptPending:
		return AttemptPending, true
	case AttemptSuccess:
		return AttemptSuccess, true
	case AttemptFailure:
		return AttemptFailure, true
	case AttemptRetrying:
		return AttemptRetrying, true
	default:
		return "", false
	}
}

// Active reports whether the status excludes starting another attempt.
func (s AttemptStatus) Active() bool {
	return s == AttemptPending || s == AttemptRetrying
}

// Attempt is one try to deliver a session's payload to the portal. The
// payload snapshot and attempt ID are immutable once created; the attempt ID
// doubles as the idempotency key so redelivery cannot double-create portal
// records.
type Attempt struct {
	ID             string
	SessionID      string
	Payload        []byte
	Status         AttemptStatus
	RetryCount     int
	LastError      string
	PortalRecordID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastRetryAt    *time.Time
}
