package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/portal"
	"quill/internal/session"
	"quill/internal/testsupport"
)

type clientFunc func(ctx context.Context, req portal.SubmitRequest) (portal.SubmitResult, error)

func (f clientFunc) Submit(ctx context.Context, req portal.SubmitRequest) (portal.SubmitResult, error) {
	return f(ctx, req)
}

// recordingClient captures every request and replays a scripted response.
type recordingClient struct {
	mu       sync.Mutex
	requests []portal.SubmitRequest
	respond  func(call int, req portal.SubmitRequest) (portal.SubmitResult, error)
}

func (c *recordingClient) Submit(ctx context.Context, req portal.SubmitRequest) (portal.SubmitResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	call := len(c.requests)
	c.mu.Unlock()
	return c.respond(call, req)
}

func (c *recordingClient) calls() []portal.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]portal.SubmitRequest(nil), c.requests...)
}

func newTestGateway(cfg *config.Config, store *session.Store, client portal.Client) *Gateway {
	g := NewGateway(cfg, store, client, nil, nil, nil)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func validatedSession(t *testing.T, store *session.Store, id string) *session.Session {
	t.Helper()
	sess := testsupport.NewStoredSession(t, store, id, "dr-khan", testsupport.Segments())
	if err := sess.Transition(session.ModeValidated); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := store.UpdateSession(context.Background(), sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	return sess
}

func TestSubmitSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{PortalRecordID: "rec-1"}, nil
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")
	ctx := context.Background()

	attempt, err := gateway.Submit(ctx, sess, []byte(`{"ok":true}`), "dr-khan")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Status != session.AttemptSuccess || attempt.PortalRecordID != "rec-1" {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	if sess.Mode != session.ModeSubmitted {
		t.Fatalf("expected submitted mode, got %s", sess.Mode)
	}

	stored, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.Mode != session.ModeSubmitted {
		t.Fatalf("expected submitted mode persisted, got %s", stored.Mode)
	}

	calls := client.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 portal call, got %d", len(calls))
	}
	if calls[0].IdempotencyKey != attempt.ID {
		t.Fatal("idempotency key must be the attempt ID")
	}
}

func TestSubmitRetriesTransientThenFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: portal returned 503", portal.ErrTransient)
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")
	ctx := context.Background()

	payload := []byte(`{"snapshot":1}`)
	attempt, err := gateway.Submit(ctx, sess, payload, "dr-khan")
	if !portal.IsTransient(err) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	if attempt.Status != session.AttemptFailure {
		t.Fatalf("expected failure status, got %s", attempt.Status)
	}
	if attempt.RetryCount != cfg.Submission.MaxAutoRetries {
		t.Fatalf("expected retry count %d, got %d", cfg.Submission.MaxAutoRetries, attempt.RetryCount)
	}
	if attempt.LastRetryAt == nil {
		t.Fatal("expected last retry timestamp")
	}
	if sess.Mode != session.ModeSubmissionFailed {
		t.Fatalf("expected submission_failed, got %s", sess.Mode)
	}

	calls := client.calls()
	if len(calls) != cfg.Submission.MaxAutoRetries+1 {
		t.Fatalf("expected %d calls, got %d", cfg.Submission.MaxAutoRetries+1, len(calls))
	}
	for i, call := range calls {
		if call.IdempotencyKey != attempt.ID {
			t.Fatalf("call %d: retries must reuse the attempt idempotency key", i)
		}
		if string(call.Payload) != string(payload) {
			t.Fatalf("call %d: retries must redeliver the original snapshot", i)
		}
	}
}

func TestSubmitParksSessionFailedDuringBackoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: portal returned 503", portal.ErrTransient)
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")
	ctx := context.Background()

	// Capture the persisted mode at each backoff window. A process dying
	// mid-sleep must leave the session where the manual retry path can
	// reach it.
	var parked []session.Mode
	gateway.sleep = func(ctx context.Context, _ time.Duration) error {
		stored, err := store.GetSession(ctx, "sess-1")
		if err != nil {
			t.Fatalf("GetSession during backoff: %v", err)
		}
		parked = append(parked, stored.Mode)
		return nil
	}

	if _, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan"); !portal.IsTransient(err) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}

	if len(parked) != cfg.Submission.MaxAutoRetries {
		t.Fatalf("expected %d backoff windows, got %d", cfg.Submission.MaxAutoRetries, len(parked))
	}
	for i, mode := range parked {
		if mode != session.ModeSubmissionFailed {
			t.Fatalf("backoff %d: expected submission_failed persisted, got %s", i, mode)
		}
	}
}

func TestSubmitRejectionDoesNotRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, &portal.RejectionError{StatusCode: 422, Detail: "bad payload"}
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")

	attempt, err := gateway.Submit(context.Background(), sess, []byte(`{}`), "dr-khan")
	if !errors.Is(err, portal.ErrRejected) {
		t.Fatalf("expected rejection surfaced, got %v", err)
	}
	if attempt.Status != session.AttemptFailure || attempt.RetryCount != 0 {
		t.Fatalf("permanent rejection must not retry: %+v", attempt)
	}
	if len(client.calls()) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", len(client.calls()))
	}
	if sess.Mode != session.ModeSubmissionFailed {
		t.Fatalf("expected submission_failed, got %s", sess.Mode)
	}
}

func TestSubmitUnreachableQueuesOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")
	ctx := context.Background()

	attempt, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan")
	if err != nil {
		t.Fatalf("offline queueing is not an error: %v", err)
	}
	if attempt.Status != session.AttemptPending {
		t.Fatalf("queued attempt stays pending, got %s", attempt.Status)
	}
	if sess.Mode != session.ModeSubmitting {
		t.Fatalf("session stays submitting while queued, got %s", sess.Mode)
	}

	depth, err := store.OfflineDepth(ctx)
	if err != nil {
		t.Fatalf("OfflineDepth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected 1 queued payload, got %d", depth)
	}
}

func TestSubmitBlockedWhileAttemptActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway := newTestGateway(cfg, store, client)
	sess := validatedSession(t, store, "sess-1")
	ctx := context.Background()

	if _, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The pending attempt sits on the offline queue; even if the session
	// were validated again, a second attempt must be refused.
	sess.Mode = session.ModeValidated
	if _, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan"); !errors.Is(err, session.ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
}

func TestSubmitRequiresValidatedMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gateway := newTestGateway(cfg, store, clientFunc(func(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
		t.Fatal("portal must not be called")
		return portal.SubmitResult{}, nil
	}))
	sess := testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())

	var transition *session.TransitionError
	if _, err := gateway.Submit(context.Background(), sess, []byte(`{}`), "dr-khan"); !errors.As(err, &transition) {
		t.Fatalf("expected TransitionError for draft session, got %v", err)
	}
}
