package submission

import (
	"context"
	"fmt"
	"testing"

	"quill/internal/portal"
	"quill/internal/session"
	"quill/internal/testsupport"
)

func queueOffline(t *testing.T, gateway *Gateway, store *session.Store, sessionID string, payloads ...string) {
	t.Helper()
	ctx := context.Background()
	sess := validatedSession(t, store, sessionID)
	for i, payload := range payloads {
		if i > 0 {
			// Later snapshots for the same session enter the queue behind
			// the in-flight attempt, mirroring repeated offline submits.
			attempt := &session.Attempt{
				ID:        fmt.Sprintf("%s-extra-%d", sessionID, i),
				SessionID: sessionID,
				Payload:   []byte(payload),
				Status:    session.AttemptPending,
			}
			if err := store.CreateAttempt(ctx, attempt); err != nil {
				t.Fatalf("CreateAttempt: %v", err)
			}
			if _, err := store.EnqueueOffline(ctx, sessionID, attempt.ID, attempt.Payload); err != nil {
				t.Fatalf("EnqueueOffline: %v", err)
			}
			continue
		}
		if _, err := gateway.Submit(ctx, sess, []byte(payload), "dr-khan"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
}

func TestDrainDeliversQueuedSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unreachable := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway := newTestGateway(cfg, store, unreachable)
	ctx := context.Background()

	queueOffline(t, gateway, store, "sess-1", `{"s":1}`)
	queueOffline(t, gateway, store, "sess-2", `{"s":2}`)

	// Connectivity returns.
	delivered := &recordingClient{respond: func(call int, req portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{PortalRecordID: "rec-" + req.SessionID}, nil
	}}
	gateway.client = delivered

	result, err := gateway.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Delivered != 2 || result.Failed != 0 {
		t.Fatalf("unexpected drain result %+v", result)
	}

	for _, id := range []string{"sess-1", "sess-2"} {
		sess, err := store.GetSession(ctx, id)
		if err != nil {
			t.Fatalf("GetSession %s: %v", id, err)
		}
		if sess.Mode != session.ModeSubmitted {
			t.Fatalf("%s: expected submitted after drain, got %s", id, sess.Mode)
		}
	}

	depth, err := store.OfflineDepth(ctx)
	if err != nil {
		t.Fatalf("OfflineDepth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("expected empty queue, got depth %d", depth)
	}

	// A second pass finds nothing; delivery already happened.
	result, err = gateway.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Delivered != 0 || result.Failed != 0 {
		t.Fatalf("expected idle drain, got %+v", result)
	}
	if len(delivered.calls()) != 2 {
		t.Fatalf("expected 2 deliveries total, got %d", len(delivered.calls()))
	}
}

func TestDrainKeepsPerSessionOrderOnTransientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unreachable := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway := newTestGateway(cfg, store, unreachable)
	ctx := context.Background()

	queueOffline(t, gateway, store, "sess-1", `{"n":1}`, `{"n":2}`)

	// Still offline: the whole session stays queued and ordered.
	stillDown := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway.client = stillDown

	result, err := gateway.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Delivered != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(stillDown.calls()) != 1 {
		t.Fatalf("drain must stop the session at the first failure, got %d calls", len(stillDown.calls()))
	}

	pending, err := store.PendingOffline(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingOffline: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected both entries still queued, got %d", len(pending))
	}
}

func TestDrainRejectionDequeuesEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unreachable := &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}}
	gateway := newTestGateway(cfg, store, unreachable)
	ctx := context.Background()

	queueOffline(t, gateway, store, "sess-1", `{"bad":true}`)

	gateway.client = clientFunc(func(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, &portal.RejectionError{StatusCode: 422, Detail: "schema mismatch"}
	})

	result, err := gateway.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Delivered != 0 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	depth, err := store.OfflineDepth(ctx)
	if err != nil {
		t.Fatalf("OfflineDepth: %v", err)
	}
	if depth != 0 {
		t.Fatal("a definitive rejection must come off the queue")
	}

	sess, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Mode != session.ModeSubmissionFailed {
		t.Fatalf("expected submission_failed, got %s", sess.Mode)
	}
}
