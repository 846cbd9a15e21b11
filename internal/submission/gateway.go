package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"quill/internal/audit"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notify"
	"quill/internal/portal"
	"quill/internal/session"
)

// Gateway owns submission attempts for sessions. All deliveries, automatic
// retries, and offline queueing flow through it.
type Gateway struct {
	store      *session.Store
	client     portal.Client
	notifier   notify.Service
	emitter    audit.Emitter
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	drainLimit int

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway builds a gateway from configuration and collaborators.
func NewGateway(cfg *config.Config, store *session.Store, client portal.Client, notifier notify.Service, emitter audit.Emitter, logger *slog.Logger) *Gateway {
	maxRetries := cfg.Submission.MaxAutoRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := time.Duration(cfg.Submission.RetryBaseDelay) * time.Second
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	drainLimit := cfg.Submission.DrainConcurrency
	if drainLimit <= 0 {
		drainLimit = 1
	}
	if notifier == nil {
		notifier = notify.NewService(cfg)
	}
	if emitter == nil {
		emitter = audit.Nop{}
	}
	return &Gateway{
		store:      store,
		client:     client,
		notifier:   notifier,
		emitter:    emitter,
		logger:     logging.NewComponentLogger(logger, "submission"),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		drainLimit: drainLimit,
		sleep:      sleepContext,
	}
}

// Submit creates a new attempt for the session and drives it to a terminal
// outcome. The session must be validated or submission_failed with no attempt
// already in flight. The payload is snapshotted on the attempt; automatic
// retries always redeliver that snapshot.
//
// A nil error with attempt status pending means the portal was unreachable
// and the payload went onto the offline queue.
func (g *Gateway) Submit(ctx context.Context, sess *session.Session, payload []byte, actor string) (*session.Attempt, error) {
	if sess.Mode != session.ModeValidated && sess.Mode != session.ModeSubmissionFailed {
		return nil, &session.TransitionError{From: sess.Mode, To: session.ModeSubmitting}
	}
	active, err := g.store.ActiveAttempt(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, session.ErrSubmissionInFlight
	}

	attempt := &session.Attempt{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Payload:   payload,
		Status:    session.AttemptPending,
	}
	if err := g.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	if err := sess.Transition(session.ModeSubmitting); err != nil {
		return nil, err
	}
	if err := g.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionAttempted, sess.ID, actor, map[string]string{
		"attempt_id": attempt.ID,
	}))
	g.logger.InfoContext(ctx, "submission started",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldAttemptID, attempt.ID),
	)

	return g.deliver(ctx, sess, attempt, actor)
}

func (g *Gateway) deliver(ctx context.Context, sess *session.Session, attempt *session.Attempt, actor string) (*session.Attempt, error) {
	for {
		result, err := g.client.Submit(ctx, portal.SubmitRequest{
			SessionID:      sess.ID,
			IdempotencyKey: attempt.ID,
			Payload:        attempt.Payload,
		})
		if err == nil {
			if err := g.recordSuccess(ctx, sess, attempt, result.PortalRecordID, actor); err != nil {
				return attempt, err
			}
			return attempt, nil
		}

		if portal.IsUnreachable(err) {
			if err := g.enqueueOffline(ctx, sess, attempt, actor); err != nil {
				return attempt, err
			}
			return attempt, nil
		}

		if portal.IsTransient(err) && attempt.RetryCount < g.maxRetries {
			attempt.RetryCount++
			attempt.Status = session.AttemptRetrying
			attempt.LastError = err.Error()
			now := time.Now().UTC()
			attempt.LastRetryAt = &now
			if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
				return attempt, err
			}

			// The session is parked in submission_failed for the backoff
			// window. A process that dies mid-sleep leaves it in a mode the
			// manual retry path accepts instead of wedged in submitting.
			if err := sess.Transition(session.ModeSubmissionFailed); err != nil {
				return attempt, err
			}
			if err := g.store.UpdateSession(ctx, sess); err != nil {
				return attempt, err
			}

			delay := g.baseDelay << (attempt.RetryCount - 1)
			g.logger.WarnContext(ctx, "transient submission failure, retrying",
				logging.String(logging.FieldSessionID, sess.ID),
				logging.String(logging.FieldAttemptID, attempt.ID),
				logging.Int("retry_count", attempt.RetryCount),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
			if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
				return attempt, sleepErr
			}

			if err := sess.Transition(session.ModeSubmitting); err != nil {
				return attempt, err
			}
			if err := g.store.UpdateSession(ctx, sess); err != nil {
				return attempt, err
			}
			continue
		}

		if err := g.recordFailure(ctx, sess, attempt, err, actor); err != nil {
			return attempt, err
		}
		return attempt, err
	}
}

func (g *Gateway) recordSuccess(ctx context.Context, sess *session.Session, attempt *session.Attempt, portalRecordID, actor string) error {
	attempt.Status = session.AttemptSuccess
	attempt.PortalRecordID = portalRecordID
	attempt.LastError = ""
	if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
		return err
	}
	if err := sess.Transition(session.ModeSubmitted); err != nil {
		return err
	}
	if err := g.store.UpdateSession(ctx, sess); err != nil {
		return err
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionSucceeded, sess.ID, actor, map[string]string{
		"attempt_id":       attempt.ID,
		"portal_record_id": portalRecordID,
	}))
	g.logger.InfoContext(ctx, "submission succeeded",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldAttemptID, attempt.ID),
		logging.String("portal_record_id", portalRecordID),
	)
	if err := g.notifier.NotifySubmissionSucceeded(ctx, sess.ID, portalRecordID); err != nil {
		g.logger.WarnContext(ctx, "submission notification failed", logging.Error(err))
	}
	return nil
}

func (g *Gateway) recordFailure(ctx context.Context, sess *session.Session, attempt *session.Attempt, cause error, actor string) error {
	attempt.Status = session.AttemptFailure
	attempt.LastError = cause.Error()
	if err := g.store.UpdateAttempt(ctx, attempt); err != nil {
		return err
	}
	if err := sess.Transition(session.ModeSubmissionFailed); err != nil {
		return err
	}
	if err := g.store.UpdateSession(ctx, sess); err != nil {
		return err
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionFailed, sess.ID, actor, map[string]string{
		"attempt_id":  attempt.ID,
		"retry_count": strconv.Itoa(attempt.RetryCount),
		"error":       attempt.LastError,
	}))
	g.logger.ErrorContext(ctx, "submission failed",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldAttemptID, attempt.ID),
		logging.Int("retry_count", attempt.RetryCount),
		logging.Error(cause),
	)
	if err := g.notifier.NotifySubmissionFailed(ctx, sess.ID, attempt.RetryCount); err != nil {
		g.logger.WarnContext(ctx, "submission notification failed", logging.Error(err))
	}
	return nil
}

func (g *Gateway) enqueueOffline(ctx context.Context, sess *session.Session, attempt *session.Attempt, actor string) error {
	if _, err := g.store.EnqueueOffline(ctx, sess.ID, attempt.ID, attempt.Payload); err != nil {
		return fmt.Errorf("queue offline submission: %w", err)
	}

	g.emitter.Emit(ctx, audit.NewEvent(audit.EventSubmissionEnqueued, sess.ID, actor, map[string]string{
		"attempt_id": attempt.ID,
	}))
	g.logger.WarnContext(ctx, "portal unreachable, submission queued offline",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldAttemptID, attempt.ID),
	)
	if err := g.notifier.NotifySubmissionQueued(ctx, sess.ID); err != nil {
		g.logger.WarnContext(ctx, "submission notification failed", logging.Error(err))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
