package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/audit"
	"quill/internal/logging"
	"quill/internal/record"
	"quill/internal/session"
	"quill/internal/transcript"
)

// CreateSession ingests a finalized transcript and opens a draft session.
// The transcript is immutable from this point on.
func (c *Coordinator) CreateSession(ctx context.Context, clinicianID string, segments []transcript.Segment) (*session.Session, error) {
	clinicianID = strings.TrimSpace(clinicianID)
	if clinicianID == "" {
		return nil, errors.New("clinician id is required")
	}
	tr, err := transcript.New(segments)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:          uuid.NewString(),
		ClinicianID: clinicianID,
		Mode:        session.ModeDraft,
	}
	if err := c.store.CreateSession(ctx, sess, tr.Segments()); err != nil {
		return nil, err
	}

	lock := c.sessionLock(sess.ID)
	lock.Lock()
	c.mu.Lock()
	c.states[sess.ID] = &state{
		sess: sess,
		tr:   tr,
		rec:  record.New(c.registry, tr, c.cfg.Validation.FlagThreshold),
	}
	c.mu.Unlock()
	lock.Unlock()

	c.logger.InfoContext(ctx, "session created",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Int("segments", tr.Len()),
	)
	return sess, nil
}

// CommitForSubmission moves a fully validated draft into the validated mode.
// It is the only path into validated; a single unvalidated required field
// blocks the commit.
func (c *Coordinator) CommitForSubmission(ctx context.Context, sessionID, clinicianID string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.CanTransition(session.ModeValidated) {
			return &session.TransitionError{From: st.sess.Mode, To: session.ModeValidated}
		}
		status := st.rec.Status()
		if !status.ReadyForSubmission {
			return &record.IncompleteValidationError{FieldIDs: status.UnvalidatedFieldIDs}
		}

		now := time.Now().UTC()
		if err := st.sess.Transition(session.ModeValidated); err != nil {
			return err
		}
		st.sess.ValidatedBy = clinicianID
		st.sess.ValidatedAt = &now
		if err := c.store.UpdateSession(ctx, st.sess); err != nil {
			return err
		}

		c.emit(ctx, audit.EventValidationCommitted, sessionID, clinicianID, map[string]string{
			"validated_fields": strconv.Itoa(status.ValidatedFields),
		})
		c.logger.InfoContext(ctx, "validation committed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldActor, clinicianID),
		)
		if err := c.notifier.NotifyValidationCommitted(ctx, sessionID, clinicianID); err != nil {
			c.logger.WarnContext(ctx, "validation notification failed", logging.Error(err))
		}
		return nil
	})
}

// ReopenForEditing returns a validated or submission_failed session to draft.
// Field-level validation marks survive; only the session gate reopens, so a
// clinician fixing one field does not re-review the other twelve.
func (c *Coordinator) ReopenForEditing(ctx context.Context, sessionID, actor string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		priorMode := st.sess.Mode
		if err := st.sess.Transition(session.ModeDraft); err != nil {
			return err
		}
		st.sess.ValidatedBy = ""
		st.sess.ValidatedAt = nil
		if err := c.store.UpdateSession(ctx, st.sess); err != nil {
			return err
		}

		c.emit(ctx, audit.EventSessionReopened, sessionID, actor, map[string]string{
			"previous_mode": string(priorMode),
		})
		c.logger.InfoContext(ctx, "session reopened",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("previous_mode", string(priorMode)),
		)
		return nil
	})
}
