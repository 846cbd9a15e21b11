package submission

import (
	"context"

	"quill/internal/audit"
	"quill/internal/logging"
	"quill/internal/session"
)

const interruptedError = "delivery interrupted before completion"

// Reclaim resolves attempts left active by an interrupted process. An attempt
// with an undelivered offline-queue entry is left alone; the drain owns it.
// Any other active attempt lost its driving goroutine and can never finish,
// so it is marked failed and its session parked in submission_failed, where
// the manual retry path can pick it up.
//
// Must only run while no other process is submitting; the daemon calls it
// once at startup under its instance lock.
func (g *Gateway) Reclaim(ctx context.Context) (int, error) {
	attempts, err := g.store.ActiveAttempts(ctx)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, attempt := range attempts {
		queued, err := g.store.HasPendingOffline(ctx, attempt.ID)
		if err != nil {
			return reclaimed, err
		}
		if queued {
			continue
		}

		attempt.Status = session.AttemptFailure
		attempt.LastError = interruptedError
		if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
			return reclaimed, err
		}

		sess, err := g.store.GetSession(ctx, attempt.SessionID)
		if err != nil {
			return reclaimed, err
		}
		if sess.CanTransition(session.ModeSubmissionFailed) {
			if err := sess.Transition(session.ModeSubmissionFailed); err != nil {
				return reclaimed, err
			}
			if err := g.store.UpdateSession(ctx, sess); err != nil {
				return reclaimed, err
			}
		}

		g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionFailed, attempt.SessionID, drainActor, map[string]string{
			"attempt_id": attempt.ID,
			"error":      interruptedError,
		}))
		g.logger.WarnContext(ctx, "reclaimed interrupted submission",
			logging.String(logging.FieldSessionID, attempt.SessionID),
			logging.String(logging.FieldAttemptID, attempt.ID),
			logging.Int("retry_count", attempt.RetryCount),
		)
		reclaimed++
	}
	return reclaimed, nil
}
