package portal

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnreachable marks network-level failures: the portal was never
	// reached, so the payload belongs on the offline queue.
	ErrUnreachable = errors.New("portal unreachable")

	// ErrTransient marks failures worth retrying: timeouts and server-side
	// errors where the portal was reached but did not accept the payload.
	ErrTransient = errors.New("transient portal failure")

	// ErrRejected marks permanent rejections; retrying cannot help until the
	// payload changes.
	ErrRejected = errors.New("portal rejected payload")
)

// SubmitRequest carries one payload delivery.
type SubmitRequest struct {
	SessionID string
	// IdempotencyKey is the attempt identifier; the portal deduplicates on
	// it, so repeating a delivery is safe.
	IdempotencyKey string
	Payload        []byte
}

// SubmitResult is the portal's acknowledgment.
type SubmitResult struct {
	PortalRecordID string
}

// Client delivers validated assessment payloads to the portal.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// IsTransient reports whether an error is safe to retry automatically.
// Unreachable implies transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrUnreachable)
}

// IsUnreachable reports whether the portal was never reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// RejectionError wraps a permanent rejection with the portal's error detail.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("portal rejected payload (status %d): %s", e.StatusCode, e.Detail)
}

func (e *RejectionError) Unwrap() error {
	return ErrRejected
}
