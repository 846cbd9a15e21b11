package submission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"quill/internal/portal"
	"quill/internal/session"
	"quill/internal/testsupport"
)

// interruptedSubmission persists the state a crash leaves behind: the session
// in the given mode with an attempt still marked active.
func interruptedSubmission(t *testing.T, store *session.Store, sessionID string, mode session.Mode, status session.AttemptStatus) *session.Attempt {
	t.Helper()
	ctx := context.Background()

	sess := validatedSession(t, store, sessionID)
	for _, next := range pathTo(mode) {
		if err := sess.Transition(next); err != nil {
			t.Fatalf("Transition %s: %v", next, err)
		}
	}
	if err := store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	now := time.Now().UTC()
	attempt := &session.Attempt{
		ID:          sessionID + "-attempt",
		SessionID:   sessionID,
		Payload:     []byte(`{}`),
		Status:      status,
		RetryCount:  1,
		LastRetryAt: &now,
	}
	if err := store.CreateAttempt(ctx, attempt); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	return attempt
}

func pathTo(mode session.Mode) []session.Mode {
	switch mode {
	case session.ModeSubmitting:
		return []session.Mode{session.ModeSubmitting}
	case session.ModeSubmissionFailed:
		return []session.Mode{session.ModeSubmitting, session.ModeSubmissionFailed}
	default:
		return nil
	}
}

func TestReclaimResolvesInterruptedAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gateway := newTestGateway(cfg, store, clientFunc(func(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
		t.Fatal("reclaim must not call the portal")
		return portal.SubmitResult{}, nil
	}))
	ctx := context.Background()

	// Crash between attempt creation and first delivery.
	interruptedSubmission(t, store, "sess-1", session.ModeSubmitting, session.AttemptPending)
	// Crash during a backoff sleep, session already parked failed.
	interruptedSubmission(t, store, "sess-2", session.ModeSubmissionFailed, session.AttemptRetrying)

	reclaimed, err := gateway.Reclaim(ctx)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if reclaimed != 2 {
		t.Fatalf("expected 2 reclaimed attempts, got %d", reclaimed)
	}

	for _, id := range []string{"sess-1", "sess-2"} {
		attempt, err := store.GetAttempt(ctx, id+"-attempt")
		if err != nil {
			t.Fatalf("GetAttempt %s: %v", id, err)
		}
		if attempt.Status != session.AttemptFailure || attempt.LastError == "" {
			t.Fatalf("%s: expected failed attempt with error, got %+v", id, attempt)
		}
		sess, err := store.GetSession(ctx, id)
		if err != nil {
			t.Fatalf("GetSession %s: %v", id, err)
		}
		if sess.Mode != session.ModeSubmissionFailed {
			t.Fatalf("%s: expected submission_failed, got %s", id, sess.Mode)
		}
		active, err := store.ActiveAttempt(ctx, id)
		if err != nil {
			t.Fatalf("ActiveAttempt %s: %v", id, err)
		}
		if active != nil {
			t.Fatalf("%s: reclaimed attempt must no longer block, got %+v", id, active)
		}
	}

	// A second pass is idempotent.
	reclaimed, err = gateway.Reclaim(ctx)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected nothing left to reclaim, got %d", reclaimed)
	}
}

func TestReclaimedSessionAcceptsManualRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gateway := newTestGateway(cfg, store, clientFunc(func(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{PortalRecordID: "rec-1"}, nil
	}))
	ctx := context.Background()

	interruptedSubmission(t, store, "sess-1", session.ModeSubmissionFailed, session.AttemptRetrying)
	if _, err := gateway.Reclaim(ctx); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}

	sess, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	attempt, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan")
	if err != nil {
		t.Fatalf("Submit after reclaim: %v", err)
	}
	if attempt.Status != session.AttemptSuccess {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	if sess.Mode != session.ModeSubmitted {
		t.Fatalf("expected submitted, got %s", sess.Mode)
	}
}

func TestReclaimLeavesQueuedAttemptsToDrain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	gateway := newTestGateway(cfg, store, &recordingClient{respond: func(int, portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{}, fmt.Errorf("%w: connection refused", portal.ErrUnreachable)
	}})
	ctx := context.Background()

	sess := validatedSession(t, store, "sess-1")
	queued, err := gateway.Submit(ctx, sess, []byte(`{}`), "dr-khan")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	reclaimed, err := gateway.Reclaim(ctx)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("queued attempts belong to the drain, got %d reclaimed", reclaimed)
	}

	attempt, err := store.GetAttempt(ctx, queued.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if attempt.Status != session.AttemptPending {
		t.Fatalf("queued attempt must stay pending, got %s", attempt.Status)
	}

	// Connectivity returns; the queued payload still drains normally.
	gateway.client = clientFunc(func(_ context.Context, req portal.SubmitRequest) (portal.SubmitResult, error) {
		return portal.SubmitResult{PortalRecordID: "rec-" + req.SessionID}, nil
	})
	result, err := gateway.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Delivered != 1 {
		t.Fatalf("expected 1 delivery, got %+v", result)
	}
}
