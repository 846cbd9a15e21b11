package pipeline

import (
	"context"

	"quill/internal/session"
	"quill/internal/submission"
)

// Submit snapshots the session's validated record and starts a submission
// attempt. The session must be in validated mode.
func (c *Coordinator) Submit(ctx context.Context, sessionID, actor string) (*session.Attempt, error) {
	var attempt *session.Attempt
	err := c.withSession(ctx, sessionID, func(st *state) error {
		if st.sess.Mode != session.ModeValidated {
			return &session.TransitionError{From: st.sess.Mode, To: session.ModeSubmitting}
		}
		payload, err := submission.BuildPayload(c.cfg, c.registry, st.sess, st.rec)
		if err != nil {
			return err
		}
		attempt, err = c.gateway.Submit(ctx, st.sess, payload, actor)
		return err
	})
	return attempt, err
}

// RetrySubmission starts a fresh attempt for a failed submission. The new
// attempt gets its own idempotency key and a fresh payload snapshot, so an
// intervening reopen-and-edit cycle submits the corrected record.
func (c *Coordinator) RetrySubmission(ctx context.Context, sessionID, actor string) (*session.Attempt, error) {
	var attempt *session.Attempt
	err := c.withSession(ctx, sessionID, func(st *state) error {
		if st.sess.Mode != session.ModeSubmissionFailed {
			return &session.TransitionError{From: st.sess.Mode, To: session.ModeSubmitting}
		}
		payload, err := submission.BuildPayload(c.cfg, c.registry, st.sess, st.rec)
		if err != nil {
			return err
		}
		attempt, err = c.gateway.Submit(ctx, st.sess, payload, actor)
		return err
	})
	return attempt, err
}

// Drain replays the offline queue. Cached session state is dropped afterward
// because the drain updates sessions outside the per-session locks.
func (c *Coordinator) Drain(ctx context.Context) (submission.DrainResult, error) {
	result, err := c.gateway.Drain(ctx)
	c.invalidateAll()
	return result, err
}

// Reclaim resolves submission attempts orphaned by a previous process exit.
// Callers must guarantee no concurrent submitter exists (the daemon holds its
// instance lock when it calls this).
func (c *Coordinator) Reclaim(ctx context.Context) (int, error) {
	reclaimed, err := c.gateway.Reclaim(ctx)
	if reclaimed > 0 {
		c.invalidateAll()
	}
	return reclaimed, err
}

// OfflineDepth reports how many payloads await replay.
func (c *Coordinator) OfflineDepth(ctx context.Context) (int, error) {
	return c.store.OfflineDepth(ctx)
}
