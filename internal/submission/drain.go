package submission

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"quill/internal/audit"
	"quill/internal/logging"
	"quill/internal/portal"
	"quill/internal/session"
)

// drainActor attributes queue replays in the audit trail.
const drainActor = "system"

// DrainResult summarizes one pass over the offline queue.
type DrainResult struct {
	Delivered int
	Failed    int
}

// Drain replays undelivered offline queue entries. Sessions drain
// concurrently, but entries within one session go out strictly in enqueue
// order; a transient failure stops that session's replay until the next pass.
// Delivery is at-least-once, so every entry keeps its original attempt ID as
// the idempotency key.
func (g *Gateway) Drain(ctx context.Context) (DrainResult, error) {
	start := time.Now()
	sessionIDs, err := g.store.OfflineSessions(ctx)
	if err != nil {
		return DrainResult{}, err
	}
	if len(sessionIDs) == 0 {
		return DrainResult{}, nil
	}

	var delivered, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.drainLimit)
	for _, sessionID := range sessionIDs {
		group.Go(func() error {
			d, f, err := g.drainSession(groupCtx, sessionID)
			delivered.Add(int64(d))
			failed.Add(int64(f))
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return DrainResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}, err
	}

	result := DrainResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	if result.Delivered > 0 || result.Failed > 0 {
		if err := g.notifier.NotifyQueueDrained(ctx, result.Delivered, result.Failed, time.Since(start)); err != nil {
			g.logger.WarnContext(ctx, "drain notification failed", logging.Error(err))
		}
	}
	return result, nil
}

func (g *Gateway) drainSession(ctx context.Context, sessionID string) (delivered, failed int, err error) {
	items, err := g.store.PendingOffline(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		result, submitErr := g.client.Submit(ctx, portal.SubmitRequest{
			SessionID:      item.SessionID,
			IdempotencyKey: item.AttemptID,
			Payload:        item.Payload,
		})
		switch {
		case submitErr == nil:
			if err := g.finishQueuedAttempt(ctx, item, result.PortalRecordID); err != nil {
				return delivered, failed, err
			}
			delivered++
		case portal.IsTransient(submitErr):
			// Still offline or flaky. Leave this and every later entry
			// queued so per-session order holds on the next pass.
			g.logger.WarnContext(ctx, "offline replay deferred",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String(logging.FieldAttemptID, item.AttemptID),
				logging.Error(submitErr),
			)
			return delivered, failed, nil
		default:
			// Definitive rejection. Replaying the same snapshot cannot
			// succeed, so the entry comes off the queue.
			if err := g.failQueuedAttempt(ctx, item, submitErr); err != nil {
				return delivered, failed, err
			}
			failed++
		}
	}
	return delivered, failed, nil
}

func (g *Gateway) finishQueuedAttempt(ctx context.Context, item session.OfflineItem, portalRecordID string) error {
	if err := g.store.MarkDelivered(ctx, item.ID); err != nil {
		return err
	}
	attempt, err := g.store.GetAttempt(ctx, item.AttemptID)
	if err != nil {
		return err
	}
	sess, err := g.store.GetSession(ctx, item.SessionID)
	if err != nil {
		return err
	}
	if attempt != nil {
		attempt.Status = session.AttemptSuccess
		attempt.PortalRecordID = portalRecordID
		attempt.LastError = ""
		if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
	}
	if sess.CanTransition(session.ModeSubmitted) {
		if err := sess.Transition(session.ModeSubmitted); err != nil {
			return err
		}
		if err := g.store.UpdateSession(ctx, sess); err != nil {
			return err
		}
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionSucceeded, item.SessionID, drainActor, map[string]string{
		"attempt_id":       item.AttemptID,
		"portal_record_id": portalRecordID,
	}))
	g.logger.InfoContext(ctx, "offline submission delivered",
		logging.String(logging.FieldSessionID, item.SessionID),
		logging.String(logging.FieldAttemptID, item.AttemptID),
		logging.String("portal_record_id", portalRecordID),
	)
	if err := g.notifier.NotifySubmissionSucceeded(ctx, item.SessionID, portalRecordID); err != nil {
		g.logger.WarnContext(ctx, "submission notification failed", logging.Error(err))
	}
	return nil
}

func (g *Gateway) failQueuedAttempt(ctx context.Context, item session.OfflineItem, cause error) error {
	if err := g.store.MarkDelivered(ctx, item.ID); err != nil {
		return err
	}
	attempt, err := g.store.GetAttempt(ctx, item.AttemptID)
	if err != nil {
		return err
	}
	sess, err := g.store.GetSession(ctx, item.SessionID)
	if err != nil {
		return err
	}
	if attempt != nil {
		attempt.Status = session.AttemptFailure
		attempt.LastError = cause.Error()
		if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
	}
	if sess.CanTransition(session.ModeSubmissionFailed) {
		if err := sess.Transition(session.ModeSubmissionFailed); err != nil {
			return err
		}
		if err := g.store.UpdateSession(ctx, sess); err != nil {
			return err
		}
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionFailed, item.SessionID, drainActor, map[string]string{
		"attempt_id": item.AttemptID,
		"error":      cause.Error(),
	}))
	g.logger.ErrorContext(ctx, "offline submission rejected",
		logging.String(logging.FieldSessionID, item.SessionID),
		logging.String(logging.FieldAttemptID, item.AttemptID),
		logging.Error(cause),
	)
	if err := g.notifier.NotifySubmissionFailed(ctx, item.SessionID, 0); err != nil {
		g.logger.WarnContext(ctx, "submission notification failed", logging.Error(err))
	}
	return nil
}
